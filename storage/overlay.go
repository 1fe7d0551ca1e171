package storage

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
)

// Overlay buffers writes on top of a base database. Reads see the buffered
// writes first. Nothing reaches the base until Commit, which applies the
// buffer as one batch; Discard drops it.
type Overlay struct {
	base Database

	mu      sync.Mutex
	writes  *memdb.DB
	deleted map[string]struct{}
}

func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  memdb.New(comparer.DefaultComparer, 0),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.deleted, string(key))
	return o.writes.Put(key, value)
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, gone := o.deleted[string(key)]; gone {
		return nil, ErrNotFound
	}
	if value, err := o.writes.Get(key); err == nil {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.writes.Delete(key)
	o.deleted[string(key)] = struct{}{}
	return nil
}

func (o *Overlay) Write(batch *Batch) error {
	for _, op := range batch.ops {
		var err error
		if op.delete {
			err = o.Delete(op.key)
		} else {
			err = o.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of buffered operations.
func (o *Overlay) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.writes.Len() + len(o.deleted)
}

// Commit flushes the buffered writes into the base database atomically and
// resets the overlay.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := new(Batch)
	iter := o.writes.NewIterator(nil)
	for iter.Next() {
		batch.Put(iter.Key(), iter.Value())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	for key := range o.deleted {
		batch.Delete([]byte(key))
	}
	if err := o.base.Write(batch); err != nil {
		return err
	}
	o.reset()
	return nil
}

// Discard drops every buffered write.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
}

func (o *Overlay) reset() {
	o.writes.Reset()
	o.deleted = make(map[string]struct{})
}

// Close discards pending writes. The base database stays open.
func (o *Overlay) Close() {
	o.Discard()
}
