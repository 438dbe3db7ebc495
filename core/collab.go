package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blockassets/marketplace/pkg/clarity"
)

// Clock is the external block-height source. Heights are monotonically
// non-decreasing; the services only ever read it.
type Clock interface {
	Height() uint64
}

// TokenLedger moves native currency between principals. It is the only
// collaborator allowed to transfer value; the services decide whether a
// transfer is authorized and report the decision.
type TokenLedger interface {
	Transfer(ctx context.Context, from, to clarity.Principal, amount uint64) error
}

// SystemClock derives a block height from wall-clock time: the number of
// whole intervals elapsed since genesis.
type SystemClock struct {
	genesis  time.Time
	interval time.Duration
}

// NewSystemClock creates a wall-clock height source. A zero interval
// defaults to ten seconds.
func NewSystemClock(genesis time.Time, interval time.Duration) *SystemClock {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SystemClock{genesis: genesis, interval: interval}
}

func (c *SystemClock) Height() uint64 {
	elapsed := time.Since(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}

// InMemoryLedger is a process-local TokenLedger keeping balances in a map.
// It backs tests and single-node deployments that have no external ledger.
type InMemoryLedger struct {
	mu       sync.Mutex
	balances map[clarity.Principal]uint64
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{balances: make(map[clarity.Principal]uint64)}
}

// Credit adds amount to p's balance.
func (l *InMemoryLedger) Credit(p clarity.Principal, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[p] += amount
}

// Balance returns p's current balance.
func (l *InMemoryLedger) Balance(p clarity.Principal) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[p]
}

func (l *InMemoryLedger) Transfer(ctx context.Context, from, to clarity.Principal, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("ledger: principal %s holds %d, needs %d", from, l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
