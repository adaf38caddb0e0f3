// Package store provides an in-memory library.Backend.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/libris/library"
)

// ErrInjected is returned by Save/Load while a failure is armed.
var ErrInjected = errors.New("memory store: injected failure")

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the last saved State and credential in memory. It can be told
// to fail, which is how rollback paths get tested.
type Memory struct {
	mu    sync.RWMutex
	state library.State
	cred  *library.Credential
	saves int

	failSaves bool
	failLoad  bool
}

var _ library.Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a store preloaded with state.
func NewMemoryWith(state library.State) *Memory {
	return &Memory{state: state.Clone()}
}

func (m *Memory) Load(_ context.Context) (library.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failLoad {
		return library.State{}, ErrInjected
	}
	return m.state.Clone(), nil
}

func (m *Memory) Save(_ context.Context, state library.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return ErrInjected
	}
	m.state = state.Clone()
	m.saves++
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) LoadCredential(_ context.Context) (library.Credential, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return library.Credential{}, false, nil
	}
	return *m.cred, true, nil
}

func (m *Memory) SaveCredential(_ context.Context, cred library.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return ErrInjected
	}
	m.cred = &cred
	return nil
}

// =============================================================================
// FAILURE INJECTION
// =============================================================================

// FailSaves makes every following Save fail until called with false.
func (m *Memory) FailSaves(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = fail
}

// FailLoad makes Load fail until called with false.
func (m *Memory) FailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// Saved returns a copy of the last saved State.
func (m *Memory) Saved() library.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Saves counts successful Save calls.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
