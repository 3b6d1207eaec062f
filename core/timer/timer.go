// Package timer is the fixed-period interrupt scheduler.
//
// One tick increments the tick counter and runs the fast hooks. Every
// SlowPrescale ticks the slow cascade runs after them. Hooks run in
// interrupt context: they must not block and must only share state with
// the main loop through atomics.
package timer

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	// DefaultPeriod is the tick period of the reference board.
	DefaultPeriod = 512 * time.Microsecond
	// DefaultSlowPrescale runs the slow cascade at ~16 Hz.
	DefaultSlowPrescale = 128
)

// Ticker is a fast hook, run on every tick.
type Ticker interface{ DoInterrupt() }

// SlowTicker is a slow hook, run every SlowPrescale ticks.
type SlowTicker interface{ DoSlowInterrupt() }

// TickerFunc adapts a function to Ticker.
type TickerFunc func()

func (f TickerFunc) DoInterrupt() { f() }

// Timer owns the tick counter.
type Timer struct {
	period   time.Duration
	prescale uint16

	ticks atomic.Uint32

	fast []Ticker
	slow []SlowTicker

	// interrupt-context only
	slowLeft uint16
}

// New returns a timer with the given period and slow prescale.
// Zero values select the defaults.
func New(period time.Duration, prescale uint16) *Timer {
	if period <= 0 {
		period = DefaultPeriod
	}
	if prescale == 0 {
		prescale = DefaultSlowPrescale
	}
	return &Timer{period: period, prescale: prescale, slowLeft: prescale}
}

// AttachFast registers fast hooks. Call before ticking starts.
func (t *Timer) AttachFast(h ...Ticker) { t.fast = append(t.fast, h...) }

// AttachSlow registers the slow cascade in execution order. Call before
// ticking starts.
func (t *Timer) AttachSlow(h ...SlowTicker) { t.slow = append(t.slow, h...) }

// Interrupt executes one tick.
func (t *Timer) Interrupt() {
	t.ticks.Add(1)
	for _, h := range t.fast {
		h.DoInterrupt()
	}
	t.slowLeft--
	if t.slowLeft == 0 {
		t.slowLeft = t.prescale
		for _, h := range t.slow {
			h.DoSlowInterrupt()
		}
	}
}

// Run drives Interrupt from a wall-clock ticker until ctx is done. The
// calling goroutine becomes the interrupt context.
func (t *Timer) Run(ctx context.Context) {
	tk := time.NewTicker(t.period)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.Interrupt()
		}
	}
}

// Ticks returns the number of ticks since start.
func (t *Timer) Ticks() uint32 { return t.ticks.Load() }

// Period returns the tick period.
func (t *Timer) Period() time.Duration { return t.period }

// SlowPeriod returns the interval between two slow cascades.
func (t *Timer) SlowPeriod() time.Duration { return t.period * time.Duration(t.prescale) }

// Milliseconds converts the tick counter to elapsed milliseconds.
func (t *Timer) Milliseconds() uint32 {
	us := uint64(t.period / time.Microsecond)
	return uint32(uint64(t.Ticks()) * us / 1000)
}

// Delay busy-waits ms milliseconds of tick time. It must not be used from
// inside the control loop. It returns early with ctx's error.
func (t *Timer) Delay(ctx context.Context, ms uint32) error {
	us := uint64(t.period / time.Microsecond)
	n := uint32((uint64(ms)*1000 + us - 1) / us)
	start := t.Ticks()
	for t.Ticks()-start < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}
