package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "chirpbot/pkg/logx"
)

// fileStore keeps one <key>.json file per document under dir, plus an
// append-only audit.jsonl. Saves go through a temp file and rename.
type fileStore struct {
	log   logx.Logger
	dir   string
	locks keyLocks

	auditMu   sync.Mutex
	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	af, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	removeStaleTemps(dir, log)
	return &fileStore{log: log, dir: dir, auditFile: af}, nil
}

// removeStaleTemps drops temp files left by a crash between write and rename.
func removeStaleTemps(dir string, log logx.Logger) {
	matches, _ := filepath.Glob(filepath.Join(dir, ".*.tmp*"))
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			log.Debug("removed stale temp file", logx.String("path", m))
		}
	}
}

func (s *fileStore) path(key string) string { return filepath.Join(s.dir, key+".json") }

func (s *fileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(key)
	defer unlock()
	return s.readLocked(key)
}

func (s *fileStore) readLocked(key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *fileStore) Save(ctx context.Context, key string, doc []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	unlock := s.locks.lock(key)
	defer unlock()
	return s.writeLocked(key, doc)
}

func (s *fileStore) Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	if err := checkKey(key); err != nil {
		return err
	}
	unlock := s.locks.lock(key)
	defer unlock()

	cur, err := s.readLocked(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return s.writeLocked(key, next)
}

func (s *fileStore) writeLocked(key string, doc []byte) error {
	f, err := os.CreateTemp(s.dir, "."+key+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) Close() error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}
