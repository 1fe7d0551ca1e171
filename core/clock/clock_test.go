package clock

import (
	"errors"
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	c := NewManual(5)
	if h, _ := c.CurrentHeight(); h != 5 {
		t.Fatalf("unexpected height %d", h)
	}
	if h := c.Advance(3); h != 8 {
		t.Fatalf("unexpected advanced height %d", h)
	}
	c.Set(2)
	if h, _ := c.CurrentHeight(); h != 2 {
		t.Fatalf("unexpected set height %d", h)
	}
}

func TestWallClock(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	w := NewWall(genesis, 400*time.Millisecond)
	w.now = func() time.Time { return genesis.Add(10 * time.Second) }
	h, err := w.CurrentHeight()
	if err != nil {
		t.Fatalf("height: %v", err)
	}
	if h != 25 {
		t.Fatalf("expected 25 blocks, got %d", h)
	}
	w.now = func() time.Time { return genesis.Add(-time.Second) }
	if _, err := w.CurrentHeight(); !errors.Is(err, ErrBeforeGenesis) {
		t.Fatalf("expected ErrBeforeGenesis, got %v", err)
	}
}
