package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/power"
)

// DeltaChargeConfig are the targets of a NiXX charge.
type DeltaChargeConfig struct {
	Current  int32 // mA
	Limit    int32 // mA runaway limit, 0 = Current + 10%
	DeltaV   int32 // mV drop after the peak that ends the charge
	MaxV     int32 // mV absolute ceiling
	MaxTemp  int32 // cC on the external sensor, 0 = unchecked
	Capacity int32 // mAh ceiling, 0 = none

	// IgnoreSamples skips peak tracking while the pack voltage settles
	// after connection; a fresh NiMH cell often dips first.
	IgnoreSamples uint32
}

// DeltaCharge ends a NiXX charge on the voltage drop that follows the peak.
type DeltaCharge struct {
	chg Actuator
	src Source
	cfg DeltaChargeConfig

	samples uint32
	peak    int32
}

// NewDeltaCharge binds the strategy to the charge stage.
func NewDeltaCharge(chg Actuator, src Source) *DeltaCharge {
	return &DeltaCharge{chg: chg, src: src}
}

func (s *DeltaCharge) Kind() Kind { return KindDeltaCharge }

// Configure sets the targets for the next run.
func (s *DeltaCharge) Configure(c DeltaChargeConfig) {
	if c.Limit <= 0 {
		c.Limit = c.Current + c.Current/10
	}
	s.cfg = c
}

func (s *DeltaCharge) PowerOn() {
	s.samples, s.peak = 0, 0
	s.chg.PowerOn()
	s.chg.SetRealValue(s.cfg.Current)
}

func (s *DeltaCharge) PowerOff(r power.Reason) { s.chg.PowerOff(r) }

// Peak is the highest voltage seen after the ignore window.
func (s *DeltaCharge) Peak() int32 { return s.peak }

func (s *DeltaCharge) DoStrategy() Status {
	if s.chg.Current() > s.cfg.Limit {
		return Error
	}
	v := s.chg.Vout()
	switch {
	case s.cfg.MaxV > 0 && v >= s.cfg.MaxV:
		return Complete
	case s.cfg.MaxTemp > 0 && s.src.Read(calib.Textern) >= s.cfg.MaxTemp:
		return Complete
	case s.cfg.Capacity > 0 && s.chg.Charge() > s.cfg.Capacity:
		return Complete
	}
	s.samples++
	if s.samples <= s.cfg.IgnoreSamples {
		return Running
	}
	if v > s.peak {
		s.peak = v
	}
	if s.peak-v > s.cfg.DeltaV {
		return Complete
	}
	return Running
}

func (s *DeltaCharge) IsStable() bool {
	return s.src.IsStable(calib.VoutPlus) && s.src.IsStable(calib.Ismps)
}
