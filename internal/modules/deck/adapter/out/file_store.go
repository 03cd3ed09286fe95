package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"focusdeck/internal/modules/deck/domain"
	deckout "focusdeck/internal/modules/deck/port/out"
)

type fileState struct {
	Snapshot *domain.SessionSnapshot `json:"snapshot,omitempty"`
	Usage    *domain.DailyUsage      `json:"usage,omitempty"`
}

// FileSessionStore keeps the snapshot and usage in a single JSON document,
// replaced atomically on every write.
type FileSessionStore struct {
	path string

	mu sync.Mutex
}

func NewFileSessionStore(path string) deckout.SessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) LoadSnapshot(_ context.Context) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read()
	if err != nil || state.Snapshot == nil {
		return nil, err
	}
	snapshot := domain.NormalizeSnapshot(*state.Snapshot)
	return &snapshot, nil
}

func (s *FileSessionStore) SaveSnapshot(_ context.Context, snapshot domain.SessionSnapshot) error {
	return s.update(func(state *fileState) { state.Snapshot = &snapshot })
}

func (s *FileSessionStore) ClearSnapshot(_ context.Context) error {
	return s.update(func(state *fileState) { state.Snapshot = nil })
}

func (s *FileSessionStore) LoadUsage(_ context.Context) (*domain.DailyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read()
	if err != nil {
		return nil, err
	}
	return state.Usage, nil
}

func (s *FileSessionStore) SaveUsage(_ context.Context, usage domain.DailyUsage) error {
	return s.update(func(state *fileState) { state.Usage = &usage })
}

func (s *FileSessionStore) update(fn func(*fileState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read()
	if err != nil {
		// An unreadable file is replaced rather than blocking every write.
		state = fileState{}
	}
	fn(&state)
	return s.write(state)
}

func (s *FileSessionStore) read() (fileState, error) {
	state := fileState{}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("read session state: %w", err)
	}
	if err := json.Unmarshal(payload, &state); err != nil {
		return fileState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

func (s *FileSessionStore) write(state fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session state dir: %w", err)
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}
