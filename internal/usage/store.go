package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists ledgers. Update runs fn as one atomic read-modify-write on
// the account's ledger; if fn returns an error nothing is written.
type Store interface {
	Load(ctx context.Context, accountID string) (Ledger, error)
	Update(ctx context.Context, accountID string, fn func(*Ledger) error) (Ledger, error)
}

// MemoryStore keeps ledgers for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	ledgers map[string]Ledger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledgers: make(map[string]Ledger)}
}

func (s *MemoryStore) Load(ctx context.Context, accountID string) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgers[accountID], nil
}

func (s *MemoryStore) Update(ctx context.Context, accountID string, fn func(*Ledger) error) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.ledgers[accountID]
	if err := fn(&ledger); err != nil {
		return s.ledgers[accountID], err
	}
	s.ledgers[accountID] = ledger
	return ledger, nil
}

// FileStore keeps every ledger in one JSON document on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) read() (map[string]Ledger, error) {
	ledgers := make(map[string]Ledger)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return ledgers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage file: %w", err)
	}
	if len(data) == 0 {
		return ledgers, nil
	}
	if err := json.Unmarshal(data, &ledgers); err != nil {
		return nil, fmt.Errorf("failed to parse usage file: %w", err)
	}
	return ledgers, nil
}

func (s *FileStore) write(ledgers map[string]Ledger) error {
	data, err := json.MarshalIndent(ledgers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write usage file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Load(ctx context.Context, accountID string) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledgers, err := s.read()
	if err != nil {
		return Ledger{}, err
	}
	return ledgers[accountID], nil
}

func (s *FileStore) Update(ctx context.Context, accountID string, fn func(*Ledger) error) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledgers, err := s.read()
	if err != nil {
		return Ledger{}, err
	}

	ledger := ledgers[accountID]
	if err := fn(&ledger); err != nil {
		return ledgers[accountID], err
	}
	ledgers[accountID] = ledger

	if err := s.write(ledgers); err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}
