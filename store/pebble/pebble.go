/*
Package pebble provides a library.Backend on the Pebble key-value engine.

PURPOSE:
  An embedded LSM store for installations that want crash-safe writes
  without SQL. Each record is one key; a save is one synced batch.

KEY LAYOUT:
  Tables are simulated via key-prefixing: table name + '\x00', followed by
  the record id as 8 big-endian bytes. Ids therefore iterate in numeric
  order and each table occupies a disjoint key range.

    book\x00<id>     record.Book JSON
    member\x00<id>   record.Member JSON
    loan\x00<id>     record.Transaction JSON
    cred\x00admin    record.Credential JSON
    meta\x00generation

SAVE:
  One batch: DeleteRange over each table, Set for every record, a new
  generation uuid, then Commit with pebble.Sync. Either the whole batch
  lands or none of it.

LOAD:
  Reads all three tables from one snapshot so a concurrent save is never
  seen half-applied.

SEE ALSO:
  - store/record: value schema
  - library/store.go: Backend contract
*/
package pebble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	pb "github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/libris/library"
	"github.com/warp/libris/store/record"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("pebble store: closed")

const (
	tableBooks   = "book"
	tableMembers = "member"
	tableLoans   = "loan"
	tableCred    = "cred"
	tableMeta    = "meta"
)

var (
	credKey       = prefixedKey(tableCred, []byte("admin"))
	generationKey = prefixedKey(tableMeta, []byte("generation"))
)

// =============================================================================
// OPTIONS
// =============================================================================

// Config holds the tunables for Open.
type Config struct {
	// CacheSize is the block-cache capacity in bytes.
	CacheSize int64

	// SyncWrites syncs each save to stable storage. Off only in tests that
	// do not care about durability.
	SyncWrites bool

	Logger *zap.Logger
}

func DefaultConfig() *Config {
	return &Config{
		CacheSize:  8 << 20, // 8 MB
		SyncWrites: true,
		Logger:     zap.NewNop(),
	}
}

// Option is a functional option for Open.
type Option func(*Config)

func WithCacheSize(bytes int64) Option {
	return func(c *Config) { c.CacheSize = bytes }
}

func WithSyncWrites(on bool) Option {
	return func(c *Config) { c.SyncWrites = on }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store implements library.Backend on a Pebble database.
type Store struct {
	db        *pb.DB
	writeOpts *pb.WriteOptions
	path      string
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ library.Backend = (*Store)(nil)

// Open creates or opens a Pebble database at path. The caller must Close it.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	cache := pb.NewCache(cfg.CacheSize)
	defer cache.Unref()

	db, err := pb.Open(path, &pb.Options{Cache: cache})
	if err != nil {
		return nil, fmt.Errorf("pebble store: open %s: %w", path, err)
	}

	writeOpts := pb.NoSync
	if cfg.SyncWrites {
		writeOpts = pb.Sync
	}

	log := cfg.Logger.With(zap.String("component", "pebble-store"), zap.String("path", path))
	log.Info("database opened")
	return &Store{db: db, writeOpts: writeOpts, path: path, logger: log}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true

	if err := s.db.Flush(); err != nil {
		s.logger.Error("flush failed during shutdown", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pebble store: close: %w", err)
	}
	s.logger.Info("database closed")
	return nil
}

// Save replaces every table in one batch.
func (s *Store) Save(ctx context.Context, state library.State) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, table := range []string{tableBooks, tableMembers, tableLoans} {
		if err := batch.DeleteRange(tablePrefix(table), tableUpperBound(table), nil); err != nil {
			return fmt.Errorf("pebble store: clear %s: %w", table, err)
		}
	}

	books, members, txs := record.Tables(state)
	for _, b := range books {
		if err := setJSON(batch, idKey(tableBooks, b.ID), b); err != nil {
			return err
		}
	}
	for _, m := range members {
		if err := setJSON(batch, idKey(tableMembers, m.ID), m); err != nil {
			return err
		}
	}
	for _, t := range txs {
		if err := setJSON(batch, idKey(tableLoans, t.ID), t); err != nil {
			return err
		}
	}
	if err := batch.Set(generationKey, []byte(uuid.NewString()), nil); err != nil {
		return fmt.Errorf("pebble store: set generation: %w", err)
	}

	if err := batch.Commit(s.writeOpts); err != nil {
		return fmt.Errorf("pebble store: commit: %w", err)
	}
	s.logger.Debug("saved", zap.Uint32("keys", batch.Count()))
	return nil
}

// Load reads every table from one snapshot.
func (s *Store) Load(ctx context.Context) (library.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return library.State{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return library.State{}, err
	}

	snap := s.db.NewSnapshot()
	defer snap.Close()

	books, err := scanTable[record.Book](snap, tableBooks)
	if err != nil {
		return library.State{}, err
	}
	members, err := scanTable[record.Member](snap, tableMembers)
	if err != nil {
		return library.State{}, err
	}
	txs, err := scanTable[record.Transaction](snap, tableLoans)
	if err != nil {
		return library.State{}, err
	}
	return record.State(books, members, txs), nil
}

// Generation returns the id of the last save, or "" if nothing was saved.
func (s *Store) Generation() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrClosed
	}
	val, err := s.get(generationKey)
	if errors.Is(err, pb.ErrNotFound) {
		return "", nil
	}
	return string(val), err
}

func (s *Store) LoadCredential(ctx context.Context) (library.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return library.Credential{}, false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return library.Credential{}, false, err
	}

	val, err := s.get(credKey)
	if errors.Is(err, pb.ErrNotFound) {
		return library.Credential{}, false, nil
	}
	if err != nil {
		return library.Credential{}, false, fmt.Errorf("pebble store: get credential: %w", err)
	}
	var rec record.Credential
	if err := record.JSON.Unmarshal(val, &rec); err != nil {
		return library.Credential{}, false, fmt.Errorf("pebble store: decode credential: %w", err)
	}
	return rec.ToCredential(), true, nil
}

func (s *Store) SaveCredential(ctx context.Context, cred library.Credential) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := record.JSON.Marshal(record.FromCredential(cred))
	if err != nil {
		return fmt.Errorf("pebble store: encode credential: %w", err)
	}
	if err := s.db.Set(credKey, val, s.writeOpts); err != nil {
		return fmt.Errorf("pebble store: set credential: %w", err)
	}
	return nil
}

// get returns a copy of the value; Pebble's slice dies with the closer.
func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func setJSON(batch *pb.Batch, key []byte, v any) error {
	val, err := record.JSON.Marshal(v)
	if err != nil {
		return fmt.Errorf("pebble store: encode %x: %w", key, err)
	}
	if err := batch.Set(key, val, nil); err != nil {
		return fmt.Errorf("pebble store: batch set: %w", err)
	}
	return nil
}

func scanTable[T any](snap *pb.Snapshot, table string) ([]T, error) {
	iter, err := snap.NewIter(&pb.IterOptions{
		LowerBound: tablePrefix(table),
		UpperBound: tableUpperBound(table),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble store: iterate %s: %w", table, err)
	}
	defer iter.Close()

	var out []T
	for iter.First(); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("pebble store: read %s: %w", table, err)
		}
		var rec T
		if err := record.JSON.Unmarshal(val, &rec); err != nil {
			return nil, fmt.Errorf("pebble store: decode %s %x: %w", table, iter.Key(), err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble store: iterate %s: %w", table, err)
	}
	return out, nil
}

// tablePrefix maps a table name to its key prefix: name + '\x00'.
func tablePrefix(table string) []byte {
	b := make([]byte, len(table)+1)
	copy(b, table)
	return b
}

// tableUpperBound is the exclusive end of a table's key range.
func tableUpperBound(table string) []byte {
	b := tablePrefix(table)
	b[len(table)] = 0x01
	return b
}

func prefixedKey(table string, key []byte) []byte {
	return append(tablePrefix(table), key...)
}

// idKey encodes ids big-endian so keys sort numerically.
func idKey(table string, id int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return prefixedKey(table, buf[:])
}
