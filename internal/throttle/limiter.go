package throttle

import (
	"sync/atomic"
	"time"
)

const (
	DefaultBurst  = 5
	DefaultRefill = 500 * time.Millisecond
)

// Limiter is a lock-free token bucket guarding outbound chat messages.
type Limiter struct {
	tokens   int32
	rate     time.Duration
	burst    int32
	lastTick int64
	now      func() time.Time
}

func NewLimiter(burst int, rate time.Duration) *Limiter {
	if burst <= 0 {
		burst = DefaultBurst
	}
	if rate <= 0 {
		rate = DefaultRefill
	}
	l := &Limiter{
		tokens: int32(burst),
		rate:   rate,
		burst:  int32(burst),
		now:    time.Now,
	}
	l.lastTick = l.now().UnixNano()
	return l
}

func (l *Limiter) Allow() bool {
	now := l.now().UnixNano()
	last := atomic.LoadInt64(&l.lastTick)

	generated := int32((now - last) / int64(l.rate))
	if generated > 0 {
		// advance by whole periods only so partial progress is kept
		next := last + int64(generated)*int64(l.rate)
		if atomic.CompareAndSwapInt64(&l.lastTick, last, next) {
			for {
				current := atomic.LoadInt32(&l.tokens)
				balance := min(current+generated, l.burst)
				if atomic.CompareAndSwapInt32(&l.tokens, current, balance) {
					break
				}
			}
		}
	}

	for {
		current := atomic.LoadInt32(&l.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&l.tokens, current, current-1) {
			return true
		}
	}
}
