package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultCapacity bounds how many tokens may sit between a producer
	// that is ahead and a consumer that has not caught up yet.
	DefaultCapacity = 100

	// DefaultPutTimeout is how long a producer waits for buffer space
	// before dropping a token.
	DefaultPutTimeout = 1 * time.Second
)

// Stats counts what happened to the tokens that passed through a bridge.
type Stats struct {
	Sent      int64 `json:"sent"`
	Dropped   int64 `json:"dropped"`
	Cancelled int64 `json:"cancelled"`
	Errors    int64 `json:"errors"`
}

// Bridge moves generation tokens from a synchronous producer callback into
// an asynchronous consumer without unbounded buffering. A slow consumer
// costs dropped tokens, never a stalled producer; the final text always
// comes from the awaited generation result, so drops only degrade the live
// preview.
//
// Put, Finish and RecordError belong to the producing goroutine; Finish is
// called once, after the last Put. Drain belongs to the consumer.
type Bridge struct {
	tokens     chan string
	abandoned  chan struct{}
	putTimeout time.Duration

	abandonOnce sync.Once
	finishOnce  sync.Once

	sent      atomic.Int64
	dropped   atomic.Int64
	cancelled atomic.Int64
	errors    atomic.Int64
}

func NewBridge() *Bridge {
	return NewBridgeWithOptions(DefaultCapacity, DefaultPutTimeout)
}

func NewBridgeWithOptions(capacity int, putTimeout time.Duration) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if putTimeout <= 0 {
		putTimeout = DefaultPutTimeout
	}
	return &Bridge{
		tokens:     make(chan string, capacity),
		abandoned:  make(chan struct{}),
		putTimeout: putTimeout,
	}
}

// Put enqueues one token. If the buffer stays full past the put timeout the
// token is dropped and counted; if the consumer has abandoned the stream the
// token is counted as cancelled. Put never blocks indefinitely.
func (b *Bridge) Put(token string) {
	select {
	case <-b.abandoned:
		b.cancelled.Add(1)
		return
	default:
	}

	timer := time.NewTimer(b.putTimeout)
	defer timer.Stop()

	select {
	case b.tokens <- token:
		b.sent.Add(1)
	case <-b.abandoned:
		b.cancelled.Add(1)
	case <-timer.C:
		b.dropped.Add(1)
	}
}

// Finish marks the end of production. Buffered tokens remain drainable; the
// consumer stops once it has read them all.
func (b *Bridge) Finish() {
	b.finishOnce.Do(func() {
		close(b.tokens)
	})
}

// RecordError counts a producer-side failure without interrupting the stream.
func (b *Bridge) RecordError() {
	b.errors.Add(1)
}

// Drain delivers tokens to yield until the producer finishes and the buffer
// is empty. Cancelling ctx abandons the stream: Drain returns the context
// error and later Puts are counted as cancelled instead of waiting out their
// timeout.
func (b *Bridge) Drain(ctx context.Context, yield func(token string)) error {
	for {
		select {
		case token, ok := <-b.tokens:
			if !ok {
				return nil
			}
			yield(token)
		case <-ctx.Done():
			b.abandonOnce.Do(func() {
				close(b.abandoned)
			})
			return ctx.Err()
		}
	}
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Sent:      b.sent.Load(),
		Dropped:   b.dropped.Load(),
		Cancelled: b.cancelled.Load(),
		Errors:    b.errors.Load(),
	}
}

// Degraded reports whether any token was lost or any producer error occurred.
func (b *Bridge) Degraded() bool {
	return b.dropped.Load() > 0 || b.cancelled.Load() > 0 || b.errors.Load() > 0
}

// Summary renders a human-readable account of stream degradation, or ""
// when every token was delivered cleanly.
func (b *Bridge) Summary() string {
	if !b.Degraded() {
		return ""
	}
	s := b.Stats()
	return fmt.Sprintf("streaming degraded: sent=%d dropped=%d cancelled=%d errors=%d",
		s.Sent, s.Dropped, s.Cancelled, s.Errors)
}
