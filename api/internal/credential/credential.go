package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// StorageKey is the fixed name the provider key is stored under.
const StorageKey = "gemini-api-key"

var (
	ErrEmptyCredential   = errors.New("empty credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNotFound          = errors.New("credential not found")
)

// Store persists one value per (owner, name).
type Store interface {
	Get(ctx context.Context, owner, name string) (string, error)
	Put(ctx context.Context, owner, name, value string) error
	Delete(ctx context.Context, owner, name string) error
}

// Prober issues a minimal authenticated request; nil means the key works.
type Prober interface {
	Probe(ctx context.Context, key string) error
}

type Manager struct {
	store  Store
	prober Prober
	log    *zap.Logger
}

func NewManager(store Store, prober Prober, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, prober: prober, log: log}
}

// Save persists key for owner. Whitespace-only input is rejected before any I/O.
func (m *Manager) Save(ctx context.Context, owner, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	if err := m.store.Put(ctx, owner, StorageKey, key); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Validate probes the provider with key. On any failure the stored value is cleared.
func (m *Manager) Validate(ctx context.Context, owner, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	if err := m.prober.Probe(ctx, key); err != nil {
		m.log.Info("credential rejected", zap.String("owner", owner), zap.Error(err))
		if derr := m.store.Delete(ctx, owner, StorageKey); derr != nil && !errors.Is(derr, ErrNotFound) {
			m.log.Warn("clear credential", zap.String("owner", owner), zap.Error(derr))
		}
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return nil
}

// SaveAndValidate stores key and keeps it only if the probe succeeds.
func (m *Manager) SaveAndValidate(ctx context.Context, owner, key string) error {
	if err := m.Save(ctx, owner, key); err != nil {
		return err
	}
	return m.Validate(ctx, owner, key)
}

// Load returns the stored key; ok is false when nothing is stored.
func (m *Manager) Load(ctx context.Context, owner string) (string, bool, error) {
	v, err := m.store.Get(ctx, owner, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (m *Manager) Clear(ctx context.Context, owner string) error {
	err := m.store.Delete(ctx, owner, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// MemoryStore keeps credentials for the life of the process.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func memKey(owner, name string) string { return owner + "\x00" + name }

func (s *MemoryStore) Get(_ context.Context, owner, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[memKey(owner, name)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Put(_ context.Context, owner, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[memKey(owner, name)] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey(owner, name)
	if _, ok := s.m[k]; !ok {
		return ErrNotFound
	}
	delete(s.m, k)
	return nil
}
