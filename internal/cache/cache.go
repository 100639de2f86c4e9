// Package cache provides a durable key→value store for recomputable derived
// data (per-file symbol tables, hover text). Writes are buffered in memory
// and drained into a single transaction; a crash can lose buffered writes,
// which is acceptable because every value is deterministically recomputable
// from file content.
package cache

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

// writeBufferSize is the number of buffered sets before an automatic flush.
const writeBufferSize = 32

type entry struct {
	key   string
	value []byte
}

// Stats summarizes a store.
type Stats struct {
	CurrentBytes int64 `json:"current_bytes"`
	MaxBytes     int64 `json:"max_bytes"`
	Entries      int64 `json:"entries"`
}

// Store is a single-writer buffered KV store. Keys are hashed before
// storage so key size is bounded; values are JSON-serialized. All methods
// are safe for concurrent use. Failures are swallowed and reported as cache
// misses; the store never fails a caller.
type Store struct {
	db       *sql.DB
	maxBytes int64
	log      *zap.Logger

	mu     sync.Mutex
	buffer []entry
}

// Open creates or opens a store at path. The file's directory is created if
// missing.
func Open(path string, maxBytes int64, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One writer; readers share the buffer lock anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Store{
		db:       db,
		maxBytes: maxBytes,
		log:      log.Named("cache").With(zap.String("path", filepath.Base(path))),
		buffer:   make([]entry, 0, writeBufferSize),
	}, nil
}

func hashKey(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get looks key up in the write buffer first, then the store, decoding the
// stored JSON into out. It reports whether a value was found and decoded.
func (s *Store) Get(key string, out any) bool {
	h := hashKey(key)

	s.mu.Lock()
	for i := len(s.buffer) - 1; i >= 0; i-- {
		if s.buffer[i].key == h {
			raw := s.buffer[i].value
			s.mu.Unlock()
			return json.Unmarshal(raw, out) == nil
		}
	}
	s.mu.Unlock()

	var raw []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, h).Scan(&raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Set appends a write to the buffer, draining it once it reaches capacity.
func (s *Store) Set(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, entry{key: hashKey(key), value: raw})
	full := len(s.buffer) >= writeBufferSize
	s.mu.Unlock()

	if full {
		s.Flush()
	}
}

// Contains reports whether key exists in the buffer or the store.
func (s *Store) Contains(key string) bool {
	h := hashKey(key)

	s.mu.Lock()
	for _, e := range s.buffer {
		if e.key == h {
			s.mu.Unlock()
			return true
		}
	}
	s.mu.Unlock()

	var one int
	return s.db.QueryRow(`SELECT 1 FROM kv WHERE key = ?`, h).Scan(&one) == nil
}

// Flush drains the buffer into a single transaction. Writes are dropped
// when the store is already over its byte bound; callers tolerate misses.
func (s *Store) Flush() {
	s.mu.Lock()
	pending := s.buffer
	s.buffer = make([]entry, 0, writeBufferSize)
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	if st := s.Stats(); s.maxBytes > 0 && st.CurrentBytes >= s.maxBytes {
		s.log.Debug("cache full, dropping writes", zap.Int("dropped", len(pending)))
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.log.Debug("flush begin failed", zap.Error(err))
		return
	}
	for _, e := range pending {
		if _, err := tx.Exec(
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			e.key, e.value,
		); err != nil {
			s.log.Debug("flush write failed", zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		s.log.Debug("flush commit failed", zap.Error(err))
	}
}

// Stats reports current size and entry count.
func (s *Store) Stats() Stats {
	var entries, bytes sql.NullInt64
	_ = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv`).
		Scan(&entries, &bytes)
	return Stats{
		CurrentBytes: bytes.Int64,
		MaxBytes:     s.maxBytes,
		Entries:      entries.Int64,
	}
}

// MaxBytes returns the configured byte bound.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Close flushes the buffer and closes the database.
func (s *Store) Close() error {
	s.Flush()
	return s.db.Close()
}
