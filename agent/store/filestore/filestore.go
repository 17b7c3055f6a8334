// Package filestore implements store.Store as one newline-delimited JSON
// file per agent id: a header record on the first line, followed by one
// turn record per line, in index order. This is the reference encoding
// named in spec §6 ("one header record plus one record per turn, each a
// single JSON object on its own line").
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/store"
	"github.com/loopforge/agentturn/agent/telemetry"
)

// Store persists AgentState as one .jsonl file per agent id under Dir.
// Save writes to a temp file in the same directory and renames over the
// target, making the write atomic with respect to concurrent Load calls on
// POSIX filesystems.
type Store struct {
	Dir    string
	Logger telemetry.Logger

	mu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string, logger telemetry.Logger) (*Store, error) {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	return &Store{Dir: dir, Logger: logger}, nil
}

type record struct {
	// Kind is "header" or "turn".
	Kind   string            `json:"kind"`
	Header *store.Header     `json:"header,omitempty"`
	Turn   *agent.AgentTurn  `json:"turn,omitempty"`
	Extra  *extraStateFields `json:"extra,omitempty"`
}

// extraStateFields carries the AgentState fields that do not fit the
// header/turn split (reasoning artifacts, seed messages) in the header
// record's "extra" field, beside store.Header, so store.Header stays a
// single small struct.
type extraStateFields struct {
	CurrentReasoningChain *agent.ReasoningChain `json:"current_reasoning_chain,omitempty"`
	CurrentReasoningTree  *agent.ReasoningTree  `json:"current_reasoning_tree,omitempty"`
	AdditionalMessages    *agent.SeedMessages   `json:"additional_messages,omitempty"`
}

func (s *Store) path(id agent.ID) string {
	return filepath.Join(s.Dir, string(id)+".jsonl")
}

// Load implements store.Store.
func (s *Store) Load(_ context.Context, agentID agent.ID) (*agent.AgentState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(agentID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("filestore: open: %w", err)
	}
	defer f.Close()

	st := &agent.AgentState{AgentID: agentID}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.Logger.Warn(context.Background(), "filestore: corrupt record, dropping state",
				"agent_id", string(agentID), "line", lineNo, "error", err.Error())
			return nil, false, nil
		}
		switch rec.Kind {
		case "header":
			if rec.Header == nil {
				continue
			}
			st.Goal = rec.Header.Goal
			st.UpdatedAt = rec.Header.UpdatedAt
			st.Metadata = rec.Header.Metadata
			if rec.Extra != nil {
				st.CurrentReasoningChain = rec.Extra.CurrentReasoningChain
				st.CurrentReasoningTree = rec.Extra.CurrentReasoningTree
				st.AdditionalMessages = rec.Extra.AdditionalMessages
			}
		case "turn":
			if rec.Turn != nil {
				st.Turns = append(st.Turns, rec.Turn)
			}
		}
	}
	if err := sc.Err(); err != nil {
		s.Logger.Warn(context.Background(), "filestore: scan error, dropping state",
			"agent_id", string(agentID), "error", err.Error())
		return nil, false, nil
	}
	return st, true, nil
}

// Save implements store.Store. It writes a fresh file atomically: the
// previous contents are never mutated in place.
func (s *Store) Save(_ context.Context, agentID agent.ID, st *agent.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.Dir, string(agentID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)

	header := record{
		Kind: "header",
		Header: &store.Header{
			AgentID:   agentID,
			Goal:      st.Goal,
			UpdatedAt: st.UpdatedAt,
			Metadata:  st.Metadata,
		},
		Extra: &extraStateFields{
			CurrentReasoningChain: st.CurrentReasoningChain,
			CurrentReasoningTree:  st.CurrentReasoningTree,
			AdditionalMessages:    st.AdditionalMessages,
		},
	}
	if err := writeLine(w, header); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	for _, turn := range st.Turns {
		if err := writeLine(w, record{Kind: "turn", Turn: turn}); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(agentID)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, agentID agent.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(agentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

func writeLine(w *bufio.Writer, rec record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("filestore: encode record: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("filestore: write record: %w", err)
	}
	return w.WriteByte('\n')
}
