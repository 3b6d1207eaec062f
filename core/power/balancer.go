package power

import (
	"sync/atomic"

	"chargecode-go/core/calib"
	"chargecode-go/x/mathx"
)

// BalancePort switches the per-cell bleed resistors; bit i is cell i.
type BalancePort interface {
	SetBalance(mask uint8)
}

// CellMeter reads per-cell voltages and their stability.
type CellMeter interface {
	Read(ch calib.Channel) int32
	IsStable(ch calib.Channel) bool
}

// Balancer equalises cells through the balance port.
type Balancer struct {
	port  BalancePort
	meter CellMeter

	// Threshold is the spread (mV) above the lowest cell at which a cell
	// starts bleeding; it stops at half of it.
	Threshold int32
	// Connected is the minimum voltage (mV) of a cell that is present.
	Connected int32

	on   atomic.Bool
	mask atomic.Uint32
}

// NewBalancer returns a balancer with default thresholds.
func NewBalancer(port BalancePort, m CellMeter) *Balancer {
	return &Balancer{port: port, meter: m, Threshold: 8, Connected: 500}
}

func (b *Balancer) PowerOn() {
	b.mask.Store(0)
	b.on.Store(true)
}

func (b *Balancer) PowerOff() {
	b.on.Store(false)
	b.mask.Store(0)
	b.port.SetBalance(0)
}

// Cells counts the connected cells, stopping at the first absent one.
func (b *Balancer) Cells() int {
	n := 0
	for i := 0; i < calib.MaxBalanceCells; i++ {
		if b.meter.Read(calib.Cell(i)) < b.Connected {
			break
		}
		n++
	}
	return n
}

// IsStable reports whether every connected cell reading has settled.
func (b *Balancer) IsStable() bool {
	n := b.Cells()
	for i := 0; i < n; i++ {
		if !b.meter.IsStable(calib.Cell(i)) {
			return false
		}
	}
	return true
}

// IsWorking reports whether any cell is bleeding.
func (b *Balancer) IsWorking() bool { return b.mask.Load() != 0 }

// Mask is the active bleed mask.
func (b *Balancer) Mask() uint8 { return uint8(b.mask.Load()) }

// Step recomputes the bleed mask. Decisions are only taken on settled
// readings; otherwise the previous mask stays.
func (b *Balancer) Step() {
	if !b.on.Load() {
		return
	}
	n := b.Cells()
	if n < 2 || !b.IsStable() {
		return
	}
	low := b.meter.Read(calib.Cell(0))
	for i := 1; i < n; i++ {
		low = mathx.Min(low, b.meter.Read(calib.Cell(i)))
	}
	prev := uint8(b.mask.Load())
	var mask uint8
	for i := 0; i < n; i++ {
		d := b.meter.Read(calib.Cell(i)) - low
		bit := uint8(1) << i
		if d > b.Threshold || (prev&bit != 0 && d > b.Threshold/2) {
			mask |= bit
		}
	}
	b.mask.Store(uint32(mask))
	b.port.SetBalance(mask)
}

// Balanced reports whether all cells are within the threshold.
func (b *Balancer) Balanced() bool {
	n := b.Cells()
	if n < 2 {
		return true
	}
	lo, hi := b.meter.Read(calib.Cell(0)), b.meter.Read(calib.Cell(0))
	for i := 1; i < n; i++ {
		v := b.meter.Read(calib.Cell(i))
		lo, hi = mathx.Min(lo, v), mathx.Max(hi, v)
	}
	return hi-lo <= b.Threshold
}
