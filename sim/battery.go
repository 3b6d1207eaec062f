// Package sim is a host-side plant for the charger: a battery pack model
// behind the ADC, the PWM outputs, the balance port and the fan, so the
// full control stack can run on a workstation.
package sim

import (
	"math"
	"sync"
	"time"

	"chargecode-go/core/settings"
	"chargecode-go/x/mathx"
)

// BatteryConfig describes the simulated pack.
type BatteryConfig struct {
	Chemistry settings.Chemistry
	Cells     int
	Capacity  int32   // mAh per cell
	SoC       float64 // initial state of charge, 0..1
	Rint      int32   // milliohm per cell
	// Imbalance is added to the charge (mAh) of cell 0.
	Imbalance int32
}

// Battery is a series pack of cells with a linear open-circuit curve,
// a series resistance and, for NiXX, a voltage drop after full charge.
type Battery struct {
	mu    sync.Mutex
	info  settings.PerCell
	cap   float64   // mAh
	q     []float64 // mAh per cell
	rint  float64   // ohm
	i     float64   // mA, positive into the pack
	bleed []float64 // mA per cell
}

func NewBattery(c BatteryConfig) *Battery {
	if c.Cells <= 0 {
		c.Cells = 1
	}
	if c.Capacity <= 0 {
		c.Capacity = 2000
	}
	b := &Battery{
		info:  c.Chemistry.Info(),
		cap:   float64(c.Capacity),
		q:     make([]float64, c.Cells),
		rint:  float64(c.Rint) / 1000,
		bleed: make([]float64, c.Cells),
	}
	for i := range b.q {
		b.q[i] = c.SoC * b.cap
	}
	b.q[0] += float64(c.Imbalance)
	return b
}

// Cells is the number of cells in series.
func (b *Battery) Cells() int { return len(b.q) }

// ocv is the open-circuit voltage (mV) of a cell holding q mAh.
func (b *Battery) ocv(q float64) float64 {
	frac := q / b.cap
	lo, hi := float64(b.info.Discharge), float64(b.info.Charge)
	if b.info.Class == settings.ClassNiXX {
		// NiXX peaks slightly under the absolute ceiling, then drops
		// 0.5 V per unit of overcharge.
		hi = float64(b.info.Nominal) + float64(b.info.Charge-b.info.Nominal)/2
		if frac > 1 {
			return hi - (frac-1)*500
		}
	}
	if frac < 0 {
		// past empty the cell collapses fast
		return lo + frac*4*(hi-lo)
	}
	return lo + frac*(hi-lo)
}

// SetCurrent sets the pack current in mA, positive when charging.
func (b *Battery) SetCurrent(mA int32) {
	b.mu.Lock()
	b.i = float64(mA)
	b.mu.Unlock()
}

// SetBleed drains bleed mA from each cell whose bit is set in mask.
func (b *Battery) SetBleed(mask uint8, mA int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.bleed {
		b.bleed[i] = 0
		if mask&(1<<i) != 0 {
			b.bleed[i] = float64(mA)
		}
	}
}

// Step advances the pack by dt.
func (b *Battery) Step(dt time.Duration) {
	h := dt.Hours()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.q {
		b.q[i] += (b.i - b.bleed[i]) * h
	}
}

// Cell is the terminal voltage (mV) of cell i under the present current.
func (b *Battery) Cell(i int) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cell(i)
}

func (b *Battery) cell(i int) int32 {
	if i < 0 || i >= len(b.q) {
		return 0
	}
	return int32(math.Round(mathx.Max(b.ocv(b.q[i])+(b.i-b.bleed[i])*b.rint, 0)))
}

// Voltage is the pack terminal voltage in mV.
func (b *Battery) Voltage() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var v int32
	for i := range b.q {
		v += b.cell(i)
	}
	return v
}

// Charge returns the charge (mAh) of cell i.
func (b *Battery) Charge(i int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q[i]
}
