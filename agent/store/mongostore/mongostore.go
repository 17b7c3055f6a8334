// Package mongostore implements store.Store on top of MongoDB: one document
// per agent id holding the header fields and the full turn log, replaced
// wholesale on every Save. A single-document replaceOne is atomic with
// respect to concurrent readers on the same _id, satisfying spec §4.2's
// atomicity requirement without a separate per-turn collection. Grounded on
// the example pack's Mongo session client
// (features/session/mongo/clients/mongo/client.go): same collection-wrapper
// shape, same upsert-by-filter idiom, adapted from session/run metadata to
// the turn engine's AgentState.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/store"
	"github.com/loopforge/agentturn/agent/telemetry"
)

const (
	defaultCollection = "agent_states"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements store.Store over a single MongoDB collection.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
	logger  telemetry.Logger
}

var _ store.Store = (*Store)(nil)

// New constructs a Store and ensures the unique index on agent_id exists.
func New(ctx context.Context, opts Options, logger telemetry.Logger) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "agent_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(idxCtx, idx); err != nil {
		return nil, err
	}

	return &Store{coll: coll, timeout: timeout, logger: logger}, nil
}

// Ping satisfies the health.Pinger shape the example pack's Mongo clients
// expose, so this store can be wired into the same readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

type turnDoc struct {
	Index       int                          `bson:"index"`
	TurnID      string                       `bson:"turn_id"`
	LLMMessage  *agent.ModelMessage          `bson:"llm_message,omitempty"`
	ToolCall    *agent.ToolCallRequest       `bson:"tool_call,omitempty"`
	ToolCalls   []*agent.ToolCallRequest     `bson:"tool_calls,omitempty"`
	ToolResult  *agent.ToolExecutionResult   `bson:"tool_result,omitempty"`
	ToolResults []*agent.ToolExecutionResult `bson:"tool_results,omitempty"`
	Synthetic   bool                         `bson:"synthetic,omitempty"`
	CreatedAt   time.Time                    `bson:"created_at"`
}

type stateDoc struct {
	AgentID               string                `bson:"agent_id"`
	Goal                  string                `bson:"goal"`
	Turns                 []turnDoc             `bson:"turns"`
	UpdatedAt             time.Time             `bson:"updated_at"`
	CurrentReasoningChain *agent.ReasoningChain `bson:"current_reasoning_chain,omitempty"`
	CurrentReasoningTree  *agent.ReasoningTree  `bson:"current_reasoning_tree,omitempty"`
	AdditionalMessages    *agent.SeedMessages   `bson:"additional_messages,omitempty"`
	Metadata              map[string]any        `bson:"metadata,omitempty"`
}

func toDoc(agentID agent.ID, st *agent.AgentState) stateDoc {
	turns := make([]turnDoc, 0, len(st.Turns))
	for _, t := range st.Turns {
		if t == nil {
			continue
		}
		turns = append(turns, turnDoc{
			Index:       t.Index,
			TurnID:      t.TurnID,
			LLMMessage:  t.LLMMessage,
			ToolCall:    t.ToolCall,
			ToolCalls:   t.ToolCalls,
			ToolResult:  t.ToolResult,
			ToolResults: t.ToolResults,
			Synthetic:   t.Synthetic,
			CreatedAt:   t.CreatedAt,
		})
	}
	return stateDoc{
		AgentID:               string(agentID),
		Goal:                  st.Goal,
		Turns:                 turns,
		UpdatedAt:             st.UpdatedAt,
		CurrentReasoningChain: st.CurrentReasoningChain,
		CurrentReasoningTree:  st.CurrentReasoningTree,
		AdditionalMessages:    st.AdditionalMessages,
		Metadata:              st.Metadata,
	}
}

func fromDoc(doc stateDoc) *agent.AgentState {
	turns := make([]*agent.AgentTurn, 0, len(doc.Turns))
	for _, t := range doc.Turns {
		turns = append(turns, &agent.AgentTurn{
			Index:       t.Index,
			TurnID:      t.TurnID,
			LLMMessage:  t.LLMMessage,
			ToolCall:    t.ToolCall,
			ToolCalls:   t.ToolCalls,
			ToolResult:  t.ToolResult,
			ToolResults: t.ToolResults,
			Synthetic:   t.Synthetic,
			CreatedAt:   t.CreatedAt,
		})
	}
	return &agent.AgentState{
		AgentID:               agent.ID(doc.AgentID),
		Goal:                  doc.Goal,
		Turns:                 turns,
		UpdatedAt:             doc.UpdatedAt,
		CurrentReasoningChain: doc.CurrentReasoningChain,
		CurrentReasoningTree:  doc.CurrentReasoningTree,
		AdditionalMessages:    doc.AdditionalMessages,
		Metadata:              doc.Metadata,
	}
}

// Load implements store.Store. An unknown agent id returns ok=false, not an
// error; a document that fails to decode is treated as corrupt and also
// returns ok=false, after logging a warning (spec §4.2).
func (s *Store) Load(ctx context.Context, agentID agent.ID) (*agent.AgentState, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc stateDoc
	err := s.coll.FindOne(ctx, bson.M{"agent_id": string(agentID)}).Decode(&doc)
	switch {
	case err == nil:
		return fromDoc(doc), true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, false, nil
	default:
		s.logger.Warn(ctx, "mongostore: corrupt or unreadable document, dropping state",
			"agent_id", string(agentID), "error", err.Error())
		return nil, false, nil
	}
}

// Save implements store.Store. A full-document replaceOne is atomic with
// respect to concurrent Load calls on the same _id (MongoDB document-level
// atomicity satisfies spec §4.2's write-temp-then-rename-equivalent
// requirement without this package owning any on-disk bytes).
func (s *Store) Save(ctx context.Context, agentID agent.ID, st *agent.AgentState) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := toDoc(agentID, st)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"agent_id": string(agentID)}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete implements store.Store. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, agentID agent.ID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"agent_id": string(agentID)})
	return err
}
