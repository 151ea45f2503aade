package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/config"
)

// fileName is the path within the .ralph directory.
const fileName = "loop-state.json"

// dirName is the directory that holds the state file.
const dirName = ".ralph"

// Store reads and writes the loop state file of one project.
type Store struct {
	dir string

	// MaxIterations caps a loop created from an activation signal when no
	// persisted active loop exists.
	MaxIterations int

	// Now is the clock used when a loop is created; defaults to time.Now.
	Now func() time.Time
}

// NewStore returns a Store rooted at the project directory dir.
func NewStore(dir string, maxIterations int) *Store {
	return &Store{dir: dir, MaxIterations: maxIterations, Now: time.Now}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dirName, fileName)
}

// Dir returns the directory holding the state file.
func (s *Store) Dir() string {
	return filepath.Join(s.dir, dirName)
}

// Read returns the persisted state exactly as stored. A missing file yields
// the zero state and no error; an unreadable or unparsable file is an error.
func (s *Store) Read() (LoopState, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return LoopState{}, nil
		}
		return LoopState{}, fmt.Errorf("state: read: %w", err)
	}

	var ls LoopState
	if jsonErr := json.Unmarshal(data, &ls); jsonErr != nil {
		return LoopState{}, fmt.Errorf("state: parse: %w", jsonErr)
	}
	if vErr := ls.Validate(); vErr != nil {
		return LoopState{}, vErr
	}
	return ls, nil
}

// Load resolves the state for this invocation. An activation signal wins
// over the persisted file: an inactive signal yields the zero state, an
// active one resumes the persisted loop (or starts a new one) at the
// signalled iteration. Load always returns a usable state; the error, when
// non-nil, reports a persisted file that was ignored.
func (s *Store) Load(act *config.Activation) (LoopState, error) {
	persisted, readErr := s.Read()

	if act == nil {
		return persisted, readErr
	}
	if !act.Active {
		return LoopState{}, readErr
	}

	ls := persisted
	if !ls.Active {
		fresh, err := NewActive(s.maxIterations(), s.now())
		if err != nil {
			return LoopState{}, errors.Join(readErr, err)
		}
		ls = fresh
	}
	ls.Iteration = act.Iteration
	return ls, readErr
}

// Save writes ls to the state file, creating the .ralph directory if needed.
// Uses a write-then-rename pattern so a concurrent reader never observes a
// partially-written file.
func (s *Store) Save(ls LoopState) error {
	stateDir := s.Dir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("state: create state dir: %w", err)
	}

	data, err := json.MarshalIndent(ls, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(stateDir, ".loop-state-*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("state: write: %w", writeErr)
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("state: sync: %w", syncErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("state: close: %w", closeErr)
	}
	if renameErr := os.Rename(tmp.Name(), s.Path()); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("state: finalize: %w", renameErr)
	}
	return nil
}

// Clear removes the state file. Clearing an absent state succeeds.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: clear: %w", err)
	}
	return nil
}

// Start activates a new loop and persists it, replacing any previous state.
func (s *Store) Start(maxIterations int) (LoopState, error) {
	if maxIterations <= 0 {
		maxIterations = s.maxIterations()
	}
	ls, err := NewActive(maxIterations, s.now())
	if err != nil {
		return LoopState{}, err
	}
	if err := s.Save(ls); err != nil {
		return LoopState{}, err
	}
	return ls, nil
}

func (s *Store) maxIterations() int {
	if s.MaxIterations > 0 {
		return s.MaxIterations
	}
	return config.Defaults().Loop.MaxIterations
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
