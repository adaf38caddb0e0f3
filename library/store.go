/*
store.go - Persistence interface for the library tables

PURPOSE:
  Defines the boundary between the core and the backends. A Store loads and
  saves the whole State at once; there are no per-record writes.

WHOLE-STATE CONTRACT:
  - Load(): returns every record of every table, active and inactive.
    A store that has never been saved returns an empty State and nil.
  - Save(): replaces all three tables in one step. Either every table is
    written or, on error, the previous contents remain readable.

IMPLEMENTATIONS:
  - store/file:         versioned JSON document, atomic rename
  - store/sqlite:       one SQL transaction per save
  - store/pebble:       one synced batch per save
  - library/store:      in-memory, for tests

SEE ALSO:
  - library.go: calls Save after every mutation, rolls back on error
  - credentials.go: CredentialStore, implemented by the same backends
*/
package library

import "context"

// Store persists the State as a whole.
type Store interface {
	// Load returns the last saved State, or an empty State if none exists.
	Load(ctx context.Context) (State, error)

	// Save replaces the stored State atomically.
	Save(ctx context.Context, state State) error

	// Close releases the backend.
	Close() error
}

// CredentialStore persists the single admin credential.
type CredentialStore interface {
	// LoadCredential returns the credential and whether one exists.
	LoadCredential(ctx context.Context) (Credential, bool, error)

	// SaveCredential replaces the credential.
	SaveCredential(ctx context.Context, cred Credential) error
}

// Backend is what every persistence package provides.
type Backend interface {
	Store
	CredentialStore
}
