// Package clock provides block-height sources for the engines.
package clock

import (
	"errors"
	"sync"
	"time"
)

var ErrBeforeGenesis = errors.New("clock: current time precedes genesis")

// Manual is a height source advanced explicitly. Tests and the CLI simulator
// drive it directly.
type Manual struct {
	mu     sync.Mutex
	height uint64
}

func NewManual(height uint64) *Manual {
	return &Manual{height: height}
}

func (m *Manual) CurrentHeight() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

// Advance moves the clock forward by blocks and returns the new height.
func (m *Manual) Advance(blocks uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += blocks
	return m.height
}

// Set forces the height. Setting a lower value simulates a clock regression.
func (m *Manual) Set(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
}

// Wall derives heights from elapsed wall time since genesis.
type Wall struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
}

func NewWall(genesis time.Time, interval time.Duration) *Wall {
	if interval <= 0 {
		interval = time.Second
	}
	return &Wall{genesis: genesis, interval: interval, now: time.Now}
}

func (w *Wall) CurrentHeight() (uint64, error) {
	elapsed := w.now().Sub(w.genesis)
	if elapsed < 0 {
		return 0, ErrBeforeGenesis
	}
	return uint64(elapsed / w.interval), nil
}
