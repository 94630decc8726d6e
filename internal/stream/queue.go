package stream

import (
	"context"
	"sync"

	"terrainstream/internal/world"
)

// Queue is the FIFO of chunk coordinates waiting for the worker. A
// coordinate stays known to the queue from Enqueue until Done, including
// the time it spends in flight, so it is never scheduled twice.
type Queue struct {
	mu       sync.Mutex
	pending  []world.ChunkCoord
	queued   map[world.ChunkCoord]struct{}
	inFlight map[world.ChunkCoord]struct{}
	ready    chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		pending:  make([]world.ChunkCoord, 0),
		queued:   make(map[world.ChunkCoord]struct{}),
		inFlight: make(map[world.ChunkCoord]struct{}),
		ready:    make(chan struct{}, 1),
	}
}

// Enqueue appends coord unless it is already pending or in flight.
func (q *Queue) Enqueue(coord world.ChunkCoord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.containsLocked(coord) {
		return false
	}
	q.pending = append(q.pending, coord)
	q.queued[coord] = struct{}{}
	q.signal()
	return true
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop blocks until a coordinate is available or ctx ends. The returned
// coordinate is in flight until Done is called for it.
func (q *Queue) Pop(ctx context.Context) (world.ChunkCoord, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			coord := q.pending[0]
			q.pending = q.pending[1:]
			delete(q.queued, coord)
			q.inFlight[coord] = struct{}{}
			if len(q.pending) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return coord, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return world.ChunkCoord{}, false
		case <-q.ready:
		}
	}
}

// Done releases an in-flight coordinate.
func (q *Queue) Done(coord world.ChunkCoord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, coord)
}

// Contains reports whether coord is pending or in flight.
func (q *Queue) Contains(coord world.ChunkCoord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.containsLocked(coord)
}

func (q *Queue) containsLocked(coord world.ChunkCoord) bool {
	if _, ok := q.queued[coord]; ok {
		return true
	}
	_, ok := q.inFlight[coord]
	return ok
}

// Retain drops every pending coordinate for which keep returns false and
// reports how many were dropped. In-flight work is left alone.
func (q *Queue) Retain(keep func(world.ChunkCoord) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.pending[:0]
	dropped := 0
	for _, coord := range q.pending {
		if keep(coord) {
			kept = append(kept, coord)
			continue
		}
		delete(q.queued, coord)
		dropped++
	}
	q.pending = kept
	return dropped
}

// Clear drops every pending coordinate.
func (q *Queue) Clear() int {
	return q.Retain(func(world.ChunkCoord) bool { return false })
}

// Len returns the number of pending coordinates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the number of coordinates handed to the worker and not
// yet marked done.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}
