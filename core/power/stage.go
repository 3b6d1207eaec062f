// Package power drives the switch-mode charge stage, the discharge load
// and the balance port.
//
// Setpoints are written from the main loop; the slow cascade applies them
// to the PWM outputs and integrates charge. PowerOff writes the output
// immediately so a fault never waits for the next slow tick.
package power

import (
	"sync"
	"sync/atomic"
	"time"

	"chargecode-go/core/calib"
	"chargecode-go/x/mathx"
)

// Reason tells presentation why an actuator was switched off.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonError
	ReasonChargingComplete
	ReasonOperatorStop
)

func (r Reason) String() string {
	switch r {
	case ReasonError:
		return "error"
	case ReasonChargingComplete:
		return "complete"
	case ReasonOperatorStop:
		return "stopped"
	}
	return "none"
}

// Output is a PWM (or DAC) channel.
type Output interface {
	SetValue(raw uint16)
}

// Meter is the part of the sampling subsystem an actuator needs.
type Meter interface {
	Read(ch calib.Channel) int32
	Vout() int32
	SetSetpoint(ch calib.Channel, raw uint16)
}

// StageConfig binds a stage to its channels.
type StageConfig struct {
	Measured calib.Channel
	Setpoint calib.Channel
	Upper    uint16        // highest raw value the output accepts
	RampStep uint16        // max raw change per slow tick; 0 = no soft start
	Slow     time.Duration // slow cascade period, for charge integration
}

// Stage is one current-regulated power path.
type Stage struct {
	cfg   StageConfig
	out   Output
	meter Meter
	table *calib.Table

	mu     sync.Mutex // held by both contexts around the output
	on     atomic.Bool
	target atomic.Uint32
	value  atomic.Uint32
	charge atomic.Int64 // mA * slow ticks
	reason atomic.Uint32
}

func newStage(cfg StageConfig, out Output, m Meter, t *calib.Table) *Stage {
	if cfg.Upper == 0 {
		cfg.Upper = 0xFFFF
	}
	return &Stage{cfg: cfg, out: out, meter: m, table: t}
}

// SMPS is the buck/boost charge stage.
type SMPS struct{ *Stage }

// NewSMPS returns the charge stage.
func NewSMPS(out Output, m Meter, t *calib.Table, upper uint16, slow time.Duration) *SMPS {
	return &SMPS{newStage(StageConfig{
		Measured: calib.Ismps, Setpoint: calib.IsmpsSet,
		Upper: upper, RampStep: upper / 16, Slow: slow,
	}, out, m, t)}
}

// Discharger is the resistive discharge load.
type Discharger struct{ *Stage }

// NewDischarger returns the discharge load.
func NewDischarger(out Output, m Meter, t *calib.Table, upper uint16, slow time.Duration) *Discharger {
	return &Discharger{newStage(StageConfig{
		Measured: calib.Idischarge, Setpoint: calib.IdischargeSet,
		Upper: upper, RampStep: upper / 8, Slow: slow,
	}, out, m, t)}
}

// PowerOn arms the stage with a zero setpoint and clears the charge counter.
func (s *Stage) PowerOn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.Store(0)
	s.value.Store(0)
	s.charge.Store(0)
	s.reason.Store(uint32(ReasonNone))
	s.out.SetValue(0)
	s.meter.SetSetpoint(s.cfg.Setpoint, 0)
	s.on.Store(true)
}

// PowerOff disarms the stage. Safe to call at any time.
func (s *Stage) PowerOff(r Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasOn := s.on.Swap(false)
	s.target.Store(0)
	s.value.Store(0)
	s.out.SetValue(0)
	s.meter.SetSetpoint(s.cfg.Setpoint, 0)
	if wasOn || r == ReasonError {
		s.reason.Store(uint32(r))
	}
}

// SetRealValue commands a current in mA. Values at or below zero stop
// the output without disarming the stage.
func (s *Stage) SetRealValue(mA int32) {
	var raw uint16
	if mA > 0 {
		raw = mathx.Min(s.table.Inverse(s.cfg.Setpoint, mA), s.cfg.Upper)
	}
	s.target.Store(uint32(raw))
	s.meter.SetSetpoint(s.cfg.Setpoint, raw)
}

// DoSlowInterrupt applies the setpoint (soft-started) and integrates charge.
func (s *Stage) DoSlowInterrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.on.Load() {
		return
	}
	cur := int32(s.value.Load())
	tgt := int32(s.target.Load())
	if step := int32(s.cfg.RampStep); step > 0 {
		tgt = mathx.Clamp(tgt, cur-step, cur+step)
	}
	s.value.Store(uint32(tgt))
	s.out.SetValue(uint16(tgt))
	s.charge.Add(int64(mathx.Max(s.meter.Read(s.cfg.Measured), 0)))
}

// IsPowerOn reports whether the stage is armed.
func (s *Stage) IsPowerOn() bool { return s.on.Load() }

// Value is the raw value currently applied to the output.
func (s *Stage) Value() uint16 { return uint16(s.value.Load()) }

// Current is the measured current in mA.
func (s *Stage) Current() int32 { return s.meter.Read(s.cfg.Measured) }

// Vout is the measured output voltage in mV.
func (s *Stage) Vout() int32 { return s.meter.Vout() }

// Charge returns the charge moved since PowerOn in mAh.
func (s *Stage) Charge() int32 {
	us := int64(s.cfg.Slow / time.Microsecond)
	return int32(s.charge.Load() * us / 3_600_000_000)
}

// LastReason is the reason given to the last effective PowerOff.
func (s *Stage) LastReason() Reason { return Reason(s.reason.Load()) }
