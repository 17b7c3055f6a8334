// Package demotools provides a couple of self-contained tool.Descriptor
// implementations for cmd/agentloopd, so the CLI demo has something for the
// model to call without wiring a real external integration. Grounded on the
// example pack's plain-function tool shape (agents/runtime/tools); unlike
// the generated registrations there, these are hand-written, fixed-schema
// tools meant only to exercise the turn engine end to end.
package demotools

import (
	"context"
	"fmt"
	"time"
)

// Clock reports the current time; useful for exercising dedupe since
// repeated calls with identical (empty) params return a cached result
// until its TTL expires.
type Clock struct{}

func (Clock) Name() string        { return "clock" }
func (Clock) Description() string { return "Returns the current UTC time." }
func (Clock) ParamsSchema() []byte {
	return []byte(`{"type":"object","properties":{},"additionalProperties":false}`)
}

func (Clock) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return map[string]any{"utc": time.Now().UTC().Format(time.RFC3339)}, nil
}

// CustomTTL overrides the default dedupe staleness window down to one
// second, since a cached "current time" is only useful for a moment.
func (Clock) CustomTTL() (int64, bool) { return int64(time.Second), true }

// Echo reflects its input back, with an optional injected failure for
// exercising the loop detector's consecutive-failure threshold.
type Echo struct{}

func (Echo) Name() string        { return "echo" }
func (Echo) Description() string { return "Echoes the message parameter back, or fails if fail=true." }
func (Echo) ParamsSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {
			"message": {"type": "string"},
			"fail": {"type": "boolean"}
		},
		"required": ["message"],
		"additionalProperties": false
	}`)
}

func (Echo) Invoke(ctx context.Context, params map[string]any) (any, error) {
	if fail, _ := params["fail"].(bool); fail {
		return nil, fmt.Errorf("echo: forced failure")
	}
	return map[string]any{"echoed": params["message"]}, nil
}
