// Package playback replays captured history without invoking the
// simulation driver. Playback and live stepping are mutually exclusive
// over the same history store: activating playback stops the driver.
package playback

import (
	"errors"
	"sync"

	"github.com/llrflab/cavsim/internal/history"
	"github.com/llrflab/cavsim/internal/sim"
)

// ErrEmptyHistory rejects playback over an empty store.
var ErrEmptyHistory = errors.New("playback: history store is empty")

// Controller steps a cursor over the history store.
type Controller struct {
	mu     sync.Mutex
	drv    *sim.Driver
	hist   *history.Store
	active bool
	index  int
}

func NewController(drv *sim.Driver, hist *history.Store) *Controller {
	return &Controller{drv: drv, hist: hist}
}

// Start enters playback mode at the oldest retained sample. The live
// stepping loop is stopped first and stays stopped while playback is
// active.
func (c *Controller) Start() error {
	if c.hist.Len() == 0 {
		return ErrEmptyHistory
	}
	c.drv.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.index = 0
	return nil
}

// Stop leaves playback mode. The driver is not restarted automatically;
// that is the control surface's decision.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// IsActive reports whether playback mode is engaged.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Seek moves the cursor, clamped to [0, history length - 1].
func (c *Controller) Seek(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = clamp(i, 0, c.hist.Len()-1)
}

// Advance moves the cursor by n frames, clamping at both ends, and
// reports whether the end of history was reached.
func (c *Controller) Advance(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := c.hist.Len() - 1
	c.index = clamp(c.index+n, 0, last)
	return c.index == last
}

// Position returns the current cursor index.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Frame returns the sample under the cursor.
func (c *Controller) Frame() (history.Sample, bool) {
	c.mu.Lock()
	idx := c.index
	c.mu.Unlock()
	return c.hist.At(idx)
}

// ModeFrame returns the per-mode displacements under the cursor.
func (c *Controller) ModeFrame() ([]float64, bool) {
	c.mu.Lock()
	idx := c.index
	c.mu.Unlock()
	return c.hist.ModeValuesAt(idx)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
