package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// Breaker stops calls to a failing store after Threshold consecutive
// failures and lets one probe through once Cooldown has elapsed.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// NewBreaker creates a Breaker. Non-positive arguments fall back to five
// failures and thirty seconds.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Sub(b.openedAt) < b.cooldown
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open || b.now().Sub(b.openedAt) >= b.cooldown
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		b.open = false
		return
	}
	b.failures++
	if b.open || b.failures >= b.threshold {
		b.open = true
		b.openedAt = b.now()
	}
}
