package storage

import (
	"errors"
	"sort"
)

// Overlay buffers writes on top of a parent database. Reads fall through to
// the parent for keys the overlay has not touched. Nothing reaches the parent
// until Commit is called.
//
// Overlay is not safe for concurrent use.
type Overlay struct {
	parent  Database
	writes  map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

var errOverlayClosed = errors.New("storage: overlay already committed or discarded")

// NewOverlay creates an empty overlay over parent.
func NewOverlay(parent Database) *Overlay {
	return &Overlay{
		parent:  parent,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	if o.closed {
		return errOverlayClosed
	}
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, deleted := o.deletes[k]; deleted {
		return nil, ErrNotFound
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.parent.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	k := string(key)
	if _, deleted := o.deletes[k]; deleted {
		return false, nil
	}
	if _, ok := o.writes[k]; ok {
		return true, nil
	}
	return o.parent.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	if o.closed {
		return errOverlayClosed
	}
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Close satisfies Database. The parent is owned by the caller and is left open.
func (o *Overlay) Close() {}

// Dirty reports the number of buffered operations.
func (o *Overlay) Dirty() int {
	return len(o.writes) + len(o.deletes)
}

// Ops returns the buffered operations in key order.
func (o *Overlay) Ops() []Op {
	ops := make([]Op, 0, o.Dirty())
	for k, v := range o.writes {
		ops = append(ops, Op{Key: []byte(k), Value: append([]byte(nil), v...)})
	}
	for k := range o.deletes {
		ops = append(ops, Op{Key: []byte(k), Delete: true})
	}
	sort.Slice(ops, func(i, j int) bool { return string(ops[i].Key) < string(ops[j].Key) })
	return ops
}

// Commit flushes the buffered operations into the parent. When the parent
// implements BatchWriter the flush is atomic.
func (o *Overlay) Commit() error {
	if o.closed {
		return errOverlayClosed
	}
	ops := o.Ops()
	o.closed = true
	if len(ops) == 0 {
		return nil
	}
	if bw, ok := o.parent.(BatchWriter); ok {
		return bw.WriteBatch(ops)
	}
	for _, op := range ops {
		var err error
		if op.Delete {
			err = o.parent.Delete(op.Key)
		} else {
			err = o.parent.Put(op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Discard drops all buffered operations.
func (o *Overlay) Discard() {
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	o.closed = true
}

// WriteBatch lets a child overlay commit into this overlay in one step.
func (o *Overlay) WriteBatch(ops []Op) error {
	for _, op := range ops {
		var err error
		if op.Delete {
			err = o.Delete(op.Key)
		} else {
			err = o.Put(op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
