package core

import "sync/atomic"

// ManualClock is a Clock advanced explicitly by tests and simulations.
type ManualClock struct {
	height atomic.Uint64
}

// NewManualClock creates a clock at the given height.
func NewManualClock(height uint64) *ManualClock {
	c := &ManualClock{}
	c.height.Store(height)
	return c
}

func (c *ManualClock) Height() uint64 { return c.height.Load() }

// Advance moves the clock forward by n heights.
func (c *ManualClock) Advance(n uint64) { c.height.Add(n) }

// Set jumps the clock to an absolute height.
func (c *ManualClock) Set(height uint64) { c.height.Store(height) }
