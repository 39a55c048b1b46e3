// Package relaydb is the shared store behind every relay state transition.
//
// All relay state (dataset nodes, headers, stakes, proofs, consumed markers)
// lives in one key-value backend. A transition runs inside Update: its reads
// see the backend plus the transition's own pending writes, and its writes are
// committed as one atomic batch or dropped entirely. Transitions are
// serialized by a single RWMutex, reads share it.
//
// Commit hooks registered through Txn.OnCommit run after the batch is durable
// and before the next transition's hooks, so events leave the store in commit
// order. Abort hooks run when a transition that registered them does not
// commit, letting callers undo effects on external systems. They run before
// the next transition starts and must not use the store.
package relaydb

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("relaydb: not found")

// Reader is a read-only view of the store.
type Reader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// Txn is the read-write view a transition works on.
type Txn interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error

	// OnCommit registers fn to run once the transition is committed.
	OnCommit(fn func())
	// OnAbort registers fn to run if the transition is not committed.
	OnAbort(fn func())
}

// Backend is a key-value database able to apply a write set atomically.
type Backend interface {
	Reader
	Commit(ws *WriteSet) error
	Close() error
}

// Store serializes transitions over a Backend.
type Store struct {
	mu       sync.RWMutex
	notifyMu sync.Mutex // orders commit hooks across transitions
	backend  Backend
	log      log.Logger
}

// New wraps a backend into a Store.
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		log:     log.New("module", "relaydb"),
	}
}

// View runs fn against a consistent snapshot of the committed state.
func (s *Store) View(fn func(Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.backend)
}

// Update runs fn as one atomic transition. If fn returns an error nothing
// is written and the error is returned unchanged.
func (s *Store) Update(fn func(Txn) error) error {
	s.mu.Lock()
	txn := newTxn(s.backend)

	if err := fn(txn); err != nil {
		txn.abort()
		s.mu.Unlock()
		return err
	}
	if !txn.writes.Empty() {
		if err := s.backend.Commit(txn.writes); err != nil {
			s.log.Error("Failed to commit transition", "writes", txn.writes.Len(), "err", err)
			txn.abort()
			s.mu.Unlock()
			return err
		}
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	for _, fn := range txn.onCommit {
		fn()
	}
	s.notifyMu.Unlock()
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}
