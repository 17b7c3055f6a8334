// Package temporalengine is an alternative, durable backend for the turn
// loop: instead of the in-memory orchestrator.Orchestrator driving turns
// directly, RunWorkflow drives the same Reason/Act decisions as a Temporal
// workflow, with the LLM call and tool invocation each pushed into their own
// activity. Temporal's own event history gives the run at-least-once turn
// execution across worker/process restarts, which is the property spec §5's
// concurrency model asks for from a "durable" engine backend; the turn log
// itself is still the agent.AgentState shape of spec §3, just persisted by
// Temporal instead of a store.Store.
//
// Grounded on the example pack's runtime/agent/engine/temporal package (the
// teacher's own Temporal adapter): same Options/WorkerOptions/
// InstrumentationOptions shape and the same go.temporal.io/sdk/contrib/
// opentelemetry wiring, trimmed from the teacher's general-purpose
// workflow/activity registry down to the one workflow and two activities
// this engine needs.
package temporalengine

import (
	"context"
	"fmt"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/worker"

	"github.com/loopforge/agentturn/agent/telemetry"
)

// Options configures the Temporal-backed engine.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, ClientOptions
	// constructs a lazy client.
	Client client.Client
	// ClientOptions builds a client when Client is nil.
	ClientOptions *client.Options
	// TaskQueue is the queue the worker polls and workflows are started on.
	TaskQueue string
	// WorkerOptions is forwarded to worker.New.
	WorkerOptions worker.Options
	// DisableTracing skips installing the OTEL tracing interceptor.
	DisableTracing bool
	Logger         telemetry.Logger
}

// Engine owns the Temporal client and worker for one task queue, and the
// Activities bound to it.
type Engine struct {
	client      client.Client
	closeClient bool
	taskQueue   string
	worker      worker.Worker
	logger      telemetry.Logger

	mu      sync.Mutex
	started bool
}

// New constructs an Engine, creating a lazy client if Options.Client is nil.
// Activities must be registered via RegisterActivities before Start.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporalengine: task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporalengine: client or client options required")
		}
		clientOpts := *opts.ClientOptions
		if !opts.DisableTracing {
			interceptorOpt, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
			if err != nil {
				return nil, fmt.Errorf("temporalengine: build tracing interceptor: %w", err)
			}
			clientOpts.Interceptors = append(clientOpts.Interceptors, interceptorOpt)
		}
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporalengine: create client: %w", err)
		}
		closeClient = true
	}

	w := worker.New(cli, opts.TaskQueue, opts.WorkerOptions)

	return &Engine{
		client:      cli,
		closeClient: closeClient,
		taskQueue:   opts.TaskQueue,
		worker:      w,
		logger:      logger,
	}, nil
}

// RegisterActivities registers RunWorkflow and acts' two activities with the
// worker, under the fixed ActivityNameDecide/ActivityNameExecuteTool names
// RunWorkflow schedules by. Must be called before Start.
func (e *Engine) RegisterActivities(acts *Activities) {
	e.worker.RegisterWorkflow(RunWorkflow)
	e.worker.RegisterActivityWithOptions(acts.Decide, activity.RegisterOptions{Name: ActivityNameDecide})
	e.worker.RegisterActivityWithOptions(acts.ExecuteTool, activity.RegisterOptions{Name: ActivityNameExecuteTool})
}

// Start begins polling the task queue. Blocks until ctx is cancelled, as
// worker.Worker.Run does.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	return e.worker.Run(interrupt)
}

// StartRun starts a new RunWorkflow execution for agentID/goal, returning the
// handle callers use to await the result (client.WorkflowRun.Get).
func (e *Engine) StartRun(ctx context.Context, workflowID, agentID, goal string, maxTurns int) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: e.taskQueue,
	}
	return e.client.ExecuteWorkflow(ctx, opts, RunWorkflow, WorkflowInput{
		AgentID:  agentID,
		Goal:     goal,
		MaxTurns: maxTurns,
	})
}

// Close shuts down the worker and, if this Engine created the client itself,
// the client too.
func (e *Engine) Close() {
	e.worker.Stop()
	if e.closeClient {
		e.client.Close()
	}
}
