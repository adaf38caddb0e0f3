/*
Package file provides a flat-file library.Backend.

PURPOSE:
  Keeps the whole library in one JSON document and the admin credential in a
  second one. This is the default backend: no server, no native library,
  files a person can read.

FILES (inside the data directory):
  libris.json   books, members and transactions
  admin.json    admin username + bcrypt hash

DOCUMENT FORMAT (version 1):
  {
    "format": "libris",
    "version": 1,
    "generation": "<uuid, new on every save>",
    "saved_at": "<RFC3339Nano>",
    "books":        {"count": N, "records": [ ...record.Book... ]},
    "members":      {"count": N, "records": [ ...record.Member... ]},
    "transactions": {"count": N, "records": [ ...record.Transaction... ]}
  }

  Each table keeps a count header; a count that disagrees with the records
  is rejected on load. Record fields are documented in store/record.

  admin.json: {"format":"libris-credential","version":1,
               "username":"admin","password_hash":"$2a$10$..."}

ATOMIC SAVE:
  The document is written to a temp file in the same directory, fsynced,
  closed and renamed over libris.json, then the directory itself is fsynced
  so the rename is durable. A crash leaves either the old or the new
  document, never a mix of tables.

MISSING FILES:
  A missing libris.json is an empty library; a missing admin.json means no
  credential yet. Neither is an error.

SEE ALSO:
  - store/record: record schema
  - library/store.go: Backend contract
*/
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/libris/library"
	"github.com/warp/libris/store/record"
)

const (
	DataFile       = "libris.json"
	CredentialFile = "admin.json"

	formatData       = "libris"
	formatCredential = "libris-credential"
)

// Sentinel errors for malformed documents.
var (
	ErrUnknownFormat      = errors.New("file: unknown document format")
	ErrUnsupportedVersion = errors.New("file: unsupported document version")
	ErrCountMismatch      = errors.New("file: table count does not match records")
)

// =============================================================================
// DOCUMENT
// =============================================================================

type table[T any] struct {
	Count   int `json:"count"`
	Records []T `json:"records"`
}

func newTable[T any](records []T) table[T] {
	return table[T]{Count: len(records), Records: records}
}

type document struct {
	Format       string                    `json:"format"`
	Version      int                       `json:"version"`
	Generation   string                    `json:"generation"`
	SavedAt      time.Time                 `json:"saved_at"`
	Books        table[record.Book]        `json:"books"`
	Members      table[record.Member]      `json:"members"`
	Transactions table[record.Transaction] `json:"transactions"`
}

type credentialDocument struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	record.Credential
}

// Header describes the last document read or written.
type Header struct {
	Version    int
	Generation string
	SavedAt    time.Time
}

// Encode renders a State as a version 1 document.
func Encode(state library.State, now time.Time) ([]byte, Header, error) {
	books, members, txs := record.Tables(state)
	doc := document{
		Format:       formatData,
		Version:      record.Version,
		Generation:   uuid.NewString(),
		SavedAt:      now.UTC(),
		Books:        newTable(books),
		Members:      newTable(members),
		Transactions: newTable(txs),
	}
	data, err := record.JSON.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, Header{}, fmt.Errorf("file: encode: %w", err)
	}
	return data, Header{Version: doc.Version, Generation: doc.Generation, SavedAt: doc.SavedAt}, nil
}

// Decode parses and checks a document.
func Decode(data []byte) (library.State, Header, error) {
	var doc document
	if err := record.JSON.Unmarshal(data, &doc); err != nil {
		return library.State{}, Header{}, fmt.Errorf("file: decode: %w", err)
	}
	if doc.Format != formatData {
		return library.State{}, Header{}, fmt.Errorf("%w: %q", ErrUnknownFormat, doc.Format)
	}
	if doc.Version < 1 || doc.Version > record.Version {
		return library.State{}, Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if err := checkCount("books", doc.Books); err != nil {
		return library.State{}, Header{}, err
	}
	if err := checkCount("members", doc.Members); err != nil {
		return library.State{}, Header{}, err
	}
	if err := checkCount("transactions", doc.Transactions); err != nil {
		return library.State{}, Header{}, err
	}
	state := record.State(doc.Books.Records, doc.Members.Records, doc.Transactions.Records)
	return state, Header{Version: doc.Version, Generation: doc.Generation, SavedAt: doc.SavedAt}, nil
}

func checkCount[T any](name string, t table[T]) error {
	if t.Count != len(t.Records) {
		return fmt.Errorf("%w: %s header says %d, found %d", ErrCountMismatch, name, t.Count, len(t.Records))
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Store is a library.Backend over two files in a directory.
type Store struct {
	dir    string
	mu     sync.Mutex
	last   Header
	logger *zap.Logger
}

var _ library.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New opens (and creates if needed) a data directory.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create data dir %s: %w", dir, err)
	}
	s := &Store{dir: dir, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(zap.String("component", "file-store"), zap.String("dir", dir))
	return s, nil
}

// Path returns the data document path.
func (s *Store) Path() string { return filepath.Join(s.dir, DataFile) }

// LastHeader returns the header of the last document read or written.
func (s *Store) LastHeader() Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Store) Load(ctx context.Context) (library.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return library.State{}, err
	}
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return library.State{}, nil
	}
	if err != nil {
		return library.State{}, fmt.Errorf("file: read %s: %w", s.Path(), err)
	}
	state, hdr, err := Decode(data)
	if err != nil {
		return library.State{}, err
	}
	s.last = hdr
	return state, nil
}

func (s *Store) Save(ctx context.Context, state library.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	data, hdr, err := Encode(state, time.Now())
	if err != nil {
		return err
	}
	if err := writeAtomic(s.dir, DataFile, data); err != nil {
		return err
	}
	s.last = hdr
	s.logger.Debug("saved", zap.String("generation", hdr.Generation), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadCredential(ctx context.Context) (library.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return library.Credential{}, false, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, CredentialFile))
	if errors.Is(err, fs.ErrNotExist) {
		return library.Credential{}, false, nil
	}
	if err != nil {
		return library.Credential{}, false, fmt.Errorf("file: read credential: %w", err)
	}
	var doc credentialDocument
	if err := record.JSON.Unmarshal(data, &doc); err != nil {
		return library.Credential{}, false, fmt.Errorf("file: decode credential: %w", err)
	}
	if doc.Format != formatCredential {
		return library.Credential{}, false, fmt.Errorf("%w: %q", ErrUnknownFormat, doc.Format)
	}
	if doc.Version < 1 || doc.Version > record.Version {
		return library.Credential{}, false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc.ToCredential(), true, nil
}

func (s *Store) SaveCredential(ctx context.Context, cred library.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	doc := credentialDocument{
		Format:     formatCredential,
		Version:    record.Version,
		Credential: record.FromCredential(cred),
	}
	data, err := record.JSON.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode credential: %w", err)
	}
	return writeAtomic(s.dir, CredentialFile, data)
}

// writeAtomic writes data to dir/name through a synced temp file and rename.
func writeAtomic(dir, name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("file: create temp for %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("file: write %s: %w", name, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("file: sync %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("file: close %s: %w", name, err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("file: replace %s: %w", name, err)
	}
	if err = syncDir(dir); err != nil {
		return fmt.Errorf("file: sync dir after %s: %w", name, err)
	}
	return nil
}

// syncDir flushes the directory entry written by a rename.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
