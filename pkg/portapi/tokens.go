package portapi

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Tokens holds the backend session credentials. The backend issues them as
// cookies; we persist them so restarts reuse a still-valid session.
type Tokens struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	CSRFToken    string `json:"csrf_token,omitempty"`
}

// TokenStore persists Tokens across process restarts.
type TokenStore interface {
	Load() (Tokens, error)
	Save(t Tokens) error
	Clear() error
}

// FileTokenStore keeps tokens in a small JSON file. Writes merge: empty
// fields in the incoming Tokens never overwrite stored values.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileTokenStore) read() (Tokens, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tokens{}, nil
		}
		return Tokens{}, err
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		// A corrupt token file is recoverable: act as if logged out.
		return Tokens{}, nil
	}
	return t, nil
}

func (s *FileTokenStore) Save(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	if t.AccessToken != "" {
		current.AccessToken = t.AccessToken
	}
	if t.RefreshToken != "" {
		current.RefreshToken = t.RefreshToken
	}
	if t.CSRFToken != "" {
		current.CSRFToken = t.CSRFToken
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o600)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenStore is the in-process TokenStore used by tests.
type MemoryTokenStore struct {
	mu sync.Mutex
	t  Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t, nil
}

func (s *MemoryTokenStore) Save(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken != "" {
		s.t.AccessToken = t.AccessToken
	}
	if t.RefreshToken != "" {
		s.t.RefreshToken = t.RefreshToken
	}
	if t.CSRFToken != "" {
		s.t.CSRFToken = t.CSRFToken
	}
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = Tokens{}
	return nil
}
