package web

import (
	"sync"
	"sync/atomic"

	"attview/internal/pipeline"
)

// PoseBroadcaster fans poses out to stream listeners (SSE, websocket).
// It keeps the most recent pose so new subscribers get an immediate sample.
// Sends never block: a subscriber whose buffer is full misses the pose and the
// miss is counted.
type PoseBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan pipeline.Pose
	nextID   int
	last     pipeline.Pose
	haveLast bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewPoseBroadcaster() *PoseBroadcaster {
	return &PoseBroadcaster{
		subs: make(map[int]chan pipeline.Pose),
	}
}

func (b *PoseBroadcaster) Subscribe(buffer int) (int, <-chan pipeline.Pose) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan pipeline.Pose, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.haveLast {
		ch <- b.last
	}
	b.mu.Unlock()
	return id, ch
}

func (b *PoseBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish implements pipeline.Presenter. It never fails.
func (b *PoseBroadcaster) Publish(p pipeline.Pose) error {
	if b == nil {
		return nil
	}
	b.published.Add(1)

	b.mu.Lock()
	b.last = p
	b.haveLast = true
	b.mu.Unlock()

	// Hold the read lock while sending so Unsubscribe cannot close a channel
	// underneath us.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Last returns the most recent pose, if any.
func (b *PoseBroadcaster) Last() (pipeline.Pose, bool) {
	if b == nil {
		return pipeline.Pose{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}

func (b *PoseBroadcaster) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *PoseBroadcaster) Published() uint64 {
	if b == nil {
		return 0
	}
	return b.published.Load()
}

// Dropped counts per-subscriber sends skipped because the subscriber was full.
func (b *PoseBroadcaster) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
