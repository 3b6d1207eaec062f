package timer

import (
	"context"
	"math"
	"testing"
	"time"
)

type countingSlow struct {
	name  string
	calls int
	log   *[]string
}

func (c *countingSlow) DoSlowInterrupt() {
	c.calls++
	*c.log = append(*c.log, c.name)
}

func TestSlowCascadeEveryPrescaleTicks(t *testing.T) {
	tm := New(DefaultPeriod, 4)
	var log []string
	smps := &countingSlow{name: "smps", log: &log}
	dis := &countingSlow{name: "discharger", log: &log}
	scr := &countingSlow{name: "screen", log: &log}
	tm.AttachSlow(smps, dis, scr)

	fast := 0
	tm.AttachFast(TickerFunc(func() { fast++ }))

	for i := 0; i < 3; i++ {
		tm.Interrupt()
	}
	if smps.calls != 0 {
		t.Fatal("slow cascade ran before the prescale elapsed")
	}
	tm.Interrupt()
	if smps.calls != 1 || dis.calls != 1 || scr.calls != 1 {
		t.Fatalf("cascade calls %d/%d/%d", smps.calls, dis.calls, scr.calls)
	}
	for i := 0; i < 8; i++ {
		tm.Interrupt()
	}
	if smps.calls != 3 || fast != 12 || tm.Ticks() != 12 {
		t.Fatalf("slow=%d fast=%d ticks=%d", smps.calls, fast, tm.Ticks())
	}
	want := []string{"smps", "discharger", "screen"}
	for i, n := range want {
		if log[i] != n {
			t.Fatalf("cascade order %v", log[:3])
		}
	}
}

func TestMilliseconds(t *testing.T) {
	tm := New(DefaultPeriod, 0)
	for i := 0; i < 2000; i++ {
		tm.Interrupt()
	}
	// 2000 * 512us = 1024ms
	if got := tm.Milliseconds(); got != 1024 {
		t.Fatalf("ms=%d want 1024", got)
	}
	if tm.SlowPeriod() != 128*DefaultPeriod {
		t.Fatalf("slow period %v", tm.SlowPeriod())
	}
}

func TestDelayWaitsForTicks(t *testing.T) {
	tm := New(time.Millisecond, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tm.Run(ctx)

	start := tm.Milliseconds()
	if err := tm.Delay(ctx, 20); err != nil {
		t.Fatal(err)
	}
	if tm.Milliseconds()-start < 20 {
		t.Fatalf("delay returned after %dms", tm.Milliseconds()-start)
	}
}

func TestDelaySurvivesCounterWrap(t *testing.T) {
	tm := New(time.Millisecond, 0)
	tm.ticks.Store(math.MaxUint32 - 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tm.Run(ctx)

	start := tm.Ticks()
	if err := tm.Delay(ctx, 20); err != nil {
		t.Fatal(err)
	}
	if n := tm.Ticks() - start; n < 20 {
		t.Fatalf("delay returned after %d ticks", n)
	}
}

func TestDelayHonoursCancellation(t *testing.T) {
	tm := New(DefaultPeriod, 0) // never ticked
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tm.Delay(ctx, 1000) }()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatal("delay ignored cancellation")
	}
}
