package internal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many subprocesses of one class run at once. Waiters are
// served in FIFO order and a caller cancelled while queued never leaks a slot.
type Limiter struct {
	name  string
	sem   *semaphore.Weighted
	cap   int64
	inUse atomic.Int64
}

func NewLimiter(name string, capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		name: name,
		sem:  semaphore.NewWeighted(int64(capacity)),
		cap:  int64(capacity),
	}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// function is idempotent.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	l.inUse.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.inUse.Add(-1)
			l.sem.Release(1)
		})
	}, nil
}

// AcquireWithin is Acquire with a queue deadline: a caller still waiting after
// d fails with an exhaustion error instead of queueing forever.
func (l *Limiter) AcquireWithin(ctx context.Context, d time.Duration) (func(), error) {
	acquireCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	release, err := l.Acquire(acquireCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(KindExhausted, fmt.Sprintf("%s limiter full (%d/%d) after %s", l.name, l.InUse(), l.Capacity(), d))
	}
	return release, nil
}

func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

func (l *Limiter) Capacity() int {
	return int(l.cap)
}
