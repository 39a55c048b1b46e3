package relaydb

// WriteSet is an ordered set of pending puts and deletes.
type WriteSet struct {
	keys   []string
	values map[string][]byte // nil value marks a delete
}

func newWriteSet() *WriteSet {
	return &WriteSet{values: make(map[string][]byte)}
}

func (ws *WriteSet) set(key, value []byte) {
	k := string(key)
	if _, ok := ws.values[k]; !ok {
		ws.keys = append(ws.keys, k)
	}
	ws.values[k] = value
}

// Len returns the number of distinct keys written.
func (ws *WriteSet) Len() int { return len(ws.keys) }

// Empty reports whether nothing was written.
func (ws *WriteSet) Empty() bool { return len(ws.keys) == 0 }

// Replay feeds every write to put or del, in first-write order.
func (ws *WriteSet) Replay(put func(key, value []byte) error, del func(key []byte) error) error {
	for _, k := range ws.keys {
		v := ws.values[k]
		var err error
		if v == nil {
			err = del([]byte(k))
		} else {
			err = put([]byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the pending state of key: written, and the value (nil if deleted).
func (ws *WriteSet) lookup(key []byte) ([]byte, bool) {
	v, ok := ws.values[string(key)]
	return v, ok
}

// txn overlays pending writes on top of the backend.
type txn struct {
	backend  Reader
	writes   *WriteSet
	onCommit []func()
	onAbort  []func()
}

func newTxn(backend Reader) *txn {
	return &txn{backend: backend, writes: newWriteSet()}
}

func (t *txn) Has(key []byte) (bool, error) {
	if v, ok := t.writes.lookup(key); ok {
		return v != nil, nil
	}
	return t.backend.Has(key)
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if v, ok := t.writes.lookup(key); ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return v, nil
	}
	return t.backend.Get(key)
}

func (t *txn) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	t.writes.set(key, cp)
	return nil
}

func (t *txn) Delete(key []byte) error {
	t.writes.set(key, nil)
	return nil
}

func (t *txn) OnCommit(fn func()) { t.onCommit = append(t.onCommit, fn) }

func (t *txn) OnAbort(fn func()) { t.onAbort = append(t.onAbort, fn) }

// abort runs abort hooks in reverse registration order.
func (t *txn) abort() {
	for i := len(t.onAbort) - 1; i >= 0; i-- {
		t.onAbort[i]()
	}
}
