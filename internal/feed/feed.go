// Package feed fans out resolved-day snapshots to observers of a date.
package feed

import (
	"sync"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
)

// Snapshot is the resolved task list of one date after a committed change.
type Snapshot struct {
	Date      model.Date
	Tasks     []model.Task
	Completed map[int64]bool
	At        time.Time
}

type Publisher interface {
	// Publish delivers snap to every subscriber of snap.Date.
	Publish(snap Snapshot)
	Subscribe(date model.Date) <-chan Snapshot
	Unsubscribe(date model.Date, ch <-chan Snapshot)
	Close()
}

// MemoryPublisher is an in-memory Publisher. A subscriber that falls behind
// loses its oldest buffered snapshot, never the newest.
type MemoryPublisher struct {
	subscribers map[model.Date][]chan Snapshot
	mu          sync.Mutex
	bufferSize  int
	closed      bool
}

type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets the channel buffer size for subscribers.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) {
		if size > 0 {
			p.bufferSize = size
		}
	}
}

func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{
		subscribers: make(map[model.Date][]chan Snapshot),
		bufferSize:  4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MemoryPublisher) Publish(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for _, ch := range p.subscribers[snap.Date] {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: make room by dropping the oldest queued snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (p *MemoryPublisher) Subscribe(date model.Date) <-chan Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch := make(chan Snapshot)
		close(ch)
		return ch
	}

	ch := make(chan Snapshot, p.bufferSize)
	p.subscribers[date] = append(p.subscribers[date], ch)
	return ch
}

func (p *MemoryPublisher) Unsubscribe(date model.Date, ch <-chan Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscribers[date]
	for i, sub := range subs {
		if sub == ch {
			p.subscribers[date] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	if len(p.subscribers[date]) == 0 {
		delete(p.subscribers, date)
	}
}

func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for date, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(p.subscribers, date)
	}
}

func (p *MemoryPublisher) SubscriberCount(date model.Date) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers[date])
}
