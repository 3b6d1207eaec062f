// Package analog is the sampling subsystem: it turns ADC readings into
// calibrated, averaged channel values and a stability predicate.
//
// DoInterrupt runs in interrupt context and is the single writer of every
// channel. Readers in the main loop only use atomic loads.
package analog

import (
	"sync/atomic"

	"chargecode-go/core/calib"
	"chargecode-go/x/mathx"
)

// Source is the read-only view the control core consumes.
type Source interface {
	CalculationCount() uint32
	Read(ch calib.Channel) int32
	IsStable(ch calib.Channel) bool
}

// ADC returns one raw 16-bit reading for a measured channel.
type ADC interface {
	ReadRaw(ch calib.Channel) (uint16, error)
}

// ADCFunc adapts a function to ADC.
type ADCFunc func(ch calib.Channel) (uint16, error)

func (f ADCFunc) ReadRaw(ch calib.Channel) (uint16, error) { return f(ch) }

// Config tunes averaging and the stability window.
type Config struct {
	Samples   uint16 // ADC readings averaged into one measurement
	Window    int    // K: measurements the stability predicate looks back over
	Tolerance int32  // allowed max-min spread inside the window, physical units

	// PolarityMargin is how far vout_minus must exceed vout_plus (mV)
	// before the output is reported as reversed.
	PolarityMargin int32
}

// DefaultConfig matches the reference board.
func DefaultConfig() Config {
	return Config{Samples: 16, Window: 8, Tolerance: 10, PolarityMargin: 500}
}

const maxWindow = 16

type channel struct {
	word   atomic.Uint64 // raw<<32 | uint32(value)
	stable atomic.Bool

	// interrupt-context only
	sum    uint32
	window [maxWindow]int32
	n      int
	head   int
}

// Inputs owns every channel of one board.
type Inputs struct {
	adc   ADC
	table *calib.Table
	cfg   Config

	ch     [calib.NumChannels]channel
	count  atomic.Uint32
	errors atomic.Uint32

	// interrupt-context only
	taken uint16
}

// New builds the sampling subsystem over adc using table.
// The table is read, never copied, so a committed recalibration takes effect
// at the next measurement.
func New(adc ADC, table *calib.Table, cfg Config) *Inputs {
	if cfg.Samples == 0 {
		cfg.Samples = 1
	}
	cfg.Window = mathx.Clamp(cfg.Window, 1, maxWindow)
	return &Inputs{adc: adc, table: table, cfg: cfg}
}

// DoInterrupt takes one ADC reading of every measured channel and finalises
// a measurement once Samples readings were accumulated.
func (in *Inputs) DoInterrupt() {
	for i := 0; i < calib.NumMeasured; i++ {
		c := &in.ch[i]
		raw, err := in.adc.ReadRaw(calib.Channel(i))
		if err != nil {
			in.errors.Add(1)
			raw, _ = unpack(c.word.Load())
		}
		c.sum += uint32(raw)
	}
	in.taken++
	if in.taken < in.cfg.Samples {
		return
	}
	for i := 0; i < calib.NumMeasured; i++ {
		c := &in.ch[i]
		raw := uint16(c.sum / uint32(in.taken))
		c.sum = 0
		in.store(calib.Channel(i), raw)
	}
	in.taken = 0
	in.count.Add(1)
}

func (in *Inputs) store(ch calib.Channel, raw uint16) {
	c := &in.ch[ch]
	v := in.table.Calibrate(ch, raw)
	c.word.Store(pack(raw, v))

	c.window[c.head] = v
	c.head = (c.head + 1) % in.cfg.Window
	if c.n < in.cfg.Window {
		c.n++
	}
	c.stable.Store(c.n == in.cfg.Window && in.spread(c) <= in.cfg.Tolerance)
}

func (in *Inputs) spread(c *channel) int32 {
	lo, hi := c.window[0], c.window[0]
	for i := 1; i < c.n; i++ {
		lo = mathx.Min(lo, c.window[i])
		hi = mathx.Max(hi, c.window[i])
	}
	return hi - lo
}

// SetSetpoint records the raw value an actuator programmed into a setpoint
// channel. Setpoints are always considered stable.
func (in *Inputs) SetSetpoint(ch calib.Channel, raw uint16) {
	if !ch.IsSetpoint() {
		return
	}
	in.ch[ch].word.Store(pack(raw, in.table.Calibrate(ch, raw)))
	in.ch[ch].stable.Store(true)
}

// CalculationCount increases by one per finalised measurement.
func (in *Inputs) CalculationCount() uint32 { return in.count.Load() }

// Read returns the latest physical value of ch.
func (in *Inputs) Read(ch calib.Channel) int32 {
	_, v := unpack(in.ch[ch].word.Load())
	return v
}

// Raw returns the latest averaged raw reading of ch.
func (in *Inputs) Raw(ch calib.Channel) uint16 {
	r, _ := unpack(in.ch[ch].word.Load())
	return r
}

// Snapshot returns raw and physical value from the same measurement.
func (in *Inputs) Snapshot(ch calib.Channel) (uint16, int32) {
	return unpack(in.ch[ch].word.Load())
}

// IsStable reports whether ch stayed within tolerance over the window.
func (in *Inputs) IsStable(ch calib.Channel) bool { return in.ch[ch].stable.Load() }

// ReadErrors counts failed ADC reads since start.
func (in *Inputs) ReadErrors() uint32 { return in.errors.Load() }

// Vout is the differential output voltage, never negative.
func (in *Inputs) Vout() int32 {
	return mathx.Max(in.Read(calib.VoutPlus)-in.Read(calib.VoutMinus), 0)
}

// ReversedPolarity reports a battery connected the wrong way round.
func (in *Inputs) ReversedPolarity() bool {
	return in.Read(calib.VoutMinus)-in.Read(calib.VoutPlus) > in.cfg.PolarityMargin
}

func pack(raw uint16, v int32) uint64 { return uint64(raw)<<32 | uint64(uint32(v)) }

func unpack(w uint64) (uint16, int32) { return uint16(w >> 32), int32(uint32(w)) }
