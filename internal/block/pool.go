package block

import "sync"

// Pool recycles Buffers of a single fixed capacity, avoiding an allocation
// of the entry backing array on every block rotation. Modeled on a
// size-bucketed sync.Pool buffer pool, narrowed here to a single capacity
// because a running daemon only ever uses the one block capacity it was
// configured with.
type Pool struct {
	capacity uint32
	pool     sync.Pool
}

// NewPool returns a Pool that hands out Buffers with room for capacity
// entries.
func NewPool(capacity uint32) *Pool {
	p := &Pool{capacity: capacity}
	p.pool.New = func() any { return New(capacity) }
	return p
}

// Get returns an empty Buffer ready to be filled.
func (p *Pool) Get() *Buffer {
	b := p.pool.Get().(*Buffer)
	b.Reset()
	return b
}

// Put returns b to the pool. Buffers whose capacity no longer matches the
// pool's configured capacity (e.g. after a reconfiguration) are dropped
// instead of pooled.
func (p *Pool) Put(b *Buffer) {
	if uint32(b.Cap()) != p.capacity {
		return
	}
	p.pool.Put(b)
}
