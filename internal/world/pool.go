package world

// Pool is a free list of inactive chunks. Chunks are never destroyed; a pool
// only grows when Acquire finds the free list empty. Pool is not safe for
// concurrent use: the streaming loop is its only caller.
type Pool struct {
	free      []*Chunk
	allocated int
}

// NewPool creates a pool pre-filled with initial chunks.
func NewPool(initial int) *Pool {
	p := &Pool{}
	p.Prewarm(initial)
	return p
}

// Prewarm allocates n chunks straight onto the free list.
func (p *Pool) Prewarm(n int) {
	for i := 0; i < n; i++ {
		c := p.allocate()
		c.pooled = true
		p.free = append(p.free, c)
	}
}

func (p *Pool) allocate() *Chunk {
	p.allocated++
	return &Chunk{id: p.allocated}
}

// Acquire pops the oldest free chunk, allocating a new one only when the
// free list is empty.
func (p *Pool) Acquire() *Chunk {
	if len(p.free) > 0 {
		c := p.free[0]
		p.free[0] = nil
		p.free = p.free[1:]
		c.pooled = false
		return c
	}
	return p.allocate()
}

// Release resets c and pushes it onto the free list. Releasing a chunk that
// is already pooled is a no-op and reports false.
func (p *Pool) Release(c *Chunk) bool {
	if c == nil || c.pooled {
		return false
	}
	c.Reset()
	c.pooled = true
	p.free = append(p.free, c)
	return true
}

// Free returns the free-list length.
func (p *Pool) Free() int {
	return len(p.free)
}

// Allocated returns how many chunks the pool has ever created.
func (p *Pool) Allocated() int {
	return p.allocated
}

// FreeChunks returns a copy of the free list.
func (p *Pool) FreeChunks() []*Chunk {
	return append([]*Chunk(nil), p.free...)
}
