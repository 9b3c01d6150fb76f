package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spigell/interviewd/internal/interview"
)

// KV is the persistent key-value primitive the store is built on. The core
// does not own a storage engine; deployments plug in whatever they run
// (Redis, a SQL table, a file). The primitive itself needs no compare-and-set
// support: the KVStore serializes commits.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// KVStore implements Store on top of a KV backend, encoding sessions as
// JSON. A single mutex makes load-check-put commits atomic with respect to
// each other, which is what upholds the optimistic-version check when the
// backend has no native conditional write.
type KVStore struct {
	mu sync.Mutex
	kv KV
}

// NewKVStore wraps the KV backend in the Store contract.
func NewKVStore(kv KV) *KVStore {
	return &KVStore{kv: kv}
}

func key(id string) string { return "interview/session/" + id }

func (s *KVStore) Create(ctx context.Context, sess *interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found, err := s.kv.Get(ctx, key(sess.ID)); err != nil {
		return fmt.Errorf("session store get: %w", err)
	} else if found {
		return interview.ErrVersionConflict
	}

	sess.Version = 1
	sess.LastUpdated = time.Now().UTC()
	return s.put(ctx, sess)
}

func (s *KVStore) Load(ctx context.Context, id string) (*interview.Session, error) {
	raw, found, err := s.kv.Get(ctx, key(id))
	if err != nil {
		return nil, fmt.Errorf("session store get: %w", err)
	}
	if !found {
		return nil, interview.ErrSessionNotFound
	}

	var sess interview.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode stored session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *KVStore) Commit(ctx context.Context, sess *interview.Session, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Load(ctx, sess.ID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return interview.ErrVersionConflict
	}

	sess.Version = expectedVersion + 1
	sess.LastUpdated = time.Now().UTC()
	return s.put(ctx, sess)
}

func (s *KVStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, key(""))
	if err != nil {
		return nil, fmt.Errorf("session store keys: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, key("")))
	}
	return ids, nil
}

func (s *KVStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, key(id)); err != nil {
		return fmt.Errorf("session store delete: %w", err)
	}
	return nil
}

func (s *KVStore) put(ctx context.Context, sess *interview.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.kv.Put(ctx, key(sess.ID), raw); err != nil {
		return fmt.Errorf("session store put: %w", err)
	}
	return nil
}

// MapKV is a trivial in-process KV backend, useful for tests and the CLI.
type MapKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMapKV creates an empty MapKV.
func NewMapKV() *MapKV {
	return &MapKV{data: make(map[string][]byte)}
}

func (m *MapKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *MapKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MapKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MapKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
