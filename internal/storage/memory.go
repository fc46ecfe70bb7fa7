package storage

import (
	"context"
	"errors"
	"sync"
)

// Memory is a process-local Store. Tests use it and it can stand in for a
// real backend in dry runs.
type Memory struct {
	locks keyLocks

	mu    sync.Mutex
	docs  map[string][]byte
	audit []AuditEntry

	// FailSave makes Save and Update return the error for matching keys.
	FailSave func(key string) error
}

func NewMemory() *Memory { return &Memory{docs: map[string][]byte{}} }

func (m *Memory) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	unlock := m.locks.lock(key)
	defer unlock()
	return m.get(key)
}

func (m *Memory) get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) put(key string, doc []byte) error {
	if m.FailSave != nil {
		if err := m.FailSave(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.docs[key] = append([]byte(nil), doc...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Save(ctx context.Context, key string, doc []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	unlock := m.locks.lock(key)
	defer unlock()
	return m.put(key, doc)
}

func (m *Memory) Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	if err := checkKey(key); err != nil {
		return err
	}
	unlock := m.locks.lock(key)
	defer unlock()
	cur, err := m.get(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return m.put(key, next)
}

func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	m.mu.Lock()
	m.audit = append(m.audit, e)
	m.mu.Unlock()
	return nil
}

// Audit returns a copy of the recorded audit entries.
func (m *Memory) Audit() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.audit...)
}

func (m *Memory) Close() error { return nil }
