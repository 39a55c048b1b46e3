package relaydb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/log"
)

// badgerBackend stores relay state in a Badger database.
type badgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens a Badger database at path. An empty path gives an
// in-memory database.
func NewBadgerBackend(path string) (Backend, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log.New("module", "badger")})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerBackend{db: db}, nil
}

func (b *badgerBackend) Has(key []byte) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *badgerBackend) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

// Commit applies the write set in one Badger transaction. Writers are
// serialized by the Store, so a conflict means an outside writer and is
// retried once.
func (b *badgerBackend) Commit(ws *WriteSet) error {
	apply := func(txn *badger.Txn) error {
		return ws.Replay(txn.Set, txn.Delete)
	}
	err := b.db.Update(apply)
	if errors.Is(err, badger.ErrConflict) {
		err = b.db.Update(apply)
	}
	return err
}

func (b *badgerBackend) Close() error {
	return b.db.Close()
}

// badgerLogger routes Badger's logs into the relay logger.
type badgerLogger struct {
	log log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(logf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(logf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(logf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace(logf(format, args...))
}

func logf(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
