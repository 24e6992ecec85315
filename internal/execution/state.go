package execution

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// StateVersion is the current persisted-state schema version.
const StateVersion = "1.1.0"

// stateVersionLegacy states lack strategy_state; the loader migrates
// them forward by defaulting it to empty.
const stateVersionLegacy = "1.0.0"

// EngineState is the durable snapshot written at the end of each cycle.
type EngineState struct {
	Version       string                  `json:"version"`
	Timestamp     time.Time               `json:"timestamp"`
	SignalQueue   []types.PendingSignal   `json:"signal_queue"`
	Positions     []types.TrackedPosition `json:"positions"`
	Cooldowns     []types.Cooldown        `json:"cooldowns"`
	PendingOrders map[string][]string     `json:"pending_orders"`
	StrategyState map[string]any          `json:"strategy_state,omitempty"`
}

// EmptyState returns a fresh state at the current version.
func EmptyState() EngineState {
	return EngineState{
		Version:       StateVersion,
		Timestamp:     time.Now().UTC(),
		PendingOrders: map[string][]string{},
	}
}

// StateStore persists engine state as a single JSON file with atomic
// write-to-temp-then-rename replacement.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	if path == "" {
		path = "./engine-state.json"
	}
	return &StateStore{path: path}
}

// Path returns the state file location.
func (s *StateStore) Path() string { return s.path }

// Save writes the state atomically. A successful return means the state
// is durable at Path.
func (s *StateStore) Save(state EngineState) error {
	state.Version = StateVersion
	state.Timestamp = time.Now().UTC()

	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".engine-state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads the stored state. A missing file yields a fresh empty
// state. Legacy versions migrate forward; an unreadable or unknown
// file is backed up to <path>.bak and a fresh state returned.
func (s *StateStore) Load() (EngineState, bool, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return EmptyState(), false, nil
	}
	if err != nil {
		return EmptyState(), false, fmt.Errorf("read state file: %w", err)
	}

	var state EngineState
	if err := json.Unmarshal(b, &state); err != nil {
		if bakErr := s.backup(); bakErr != nil {
			return EmptyState(), false, fmt.Errorf("state file corrupt and backup failed: %w", bakErr)
		}
		return EmptyState(), false, nil
	}

	switch state.Version {
	case StateVersion:
	case stateVersionLegacy:
		// Forward migration: strategy_state was introduced after 1.0.0.
		if state.StrategyState == nil {
			state.StrategyState = map[string]any{}
		}
		state.Version = StateVersion
	default:
		if bakErr := s.backup(); bakErr != nil {
			return EmptyState(), false, fmt.Errorf("unknown state version %q and backup failed: %w",
				state.Version, bakErr)
		}
		return EmptyState(), false, nil
	}

	if state.PendingOrders == nil {
		state.PendingOrders = map[string][]string{}
	}
	return state, true, nil
}

func (s *StateStore) backup() error {
	return os.Rename(s.path, s.path+".bak")
}

// Reset deletes the state file; the engine then starts empty.
func (s *StateStore) Reset() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
