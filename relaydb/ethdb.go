package relaydb

import (
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// kvBackend adapts a go-ethereum key-value store.
type kvBackend struct {
	db ethdb.KeyValueStore
}

// NewKeyValueBackend wraps any go-ethereum key-value store.
func NewKeyValueBackend(db ethdb.KeyValueStore) Backend {
	return &kvBackend{db: db}
}

// NewMemoryBackend returns an ephemeral in-memory backend.
func NewMemoryBackend() Backend {
	return NewKeyValueBackend(memorydb.New())
}

// NewLevelDBBackend opens (or creates) a LevelDB database at path.
//
// Parameters:
//   - path: database directory
//   - cacheMB: memory allocated to LevelDB caches, in megabytes
//   - handles: number of open files LevelDB may keep
func NewLevelDBBackend(path string, cacheMB, handles int) (Backend, error) {
	db, err := leveldb.New(path, cacheMB, handles, "ethrelay/db/", false)
	if err != nil {
		return nil, err
	}
	return NewKeyValueBackend(db), nil
}

func (b *kvBackend) Has(key []byte) (bool, error) {
	return b.db.Has(key)
}

func (b *kvBackend) Get(key []byte) ([]byte, error) {
	ok, err := b.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b.db.Get(key)
}

func (b *kvBackend) Commit(ws *WriteSet) error {
	batch := b.db.NewBatch()
	if err := ws.Replay(batch.Put, batch.Delete); err != nil {
		return err
	}
	return batch.Write()
}

func (b *kvBackend) Close() error {
	return b.db.Close()
}
