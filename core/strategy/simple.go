package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/power"
)

// SimpleChargeConfig are the targets of a constant-current charge.
type SimpleChargeConfig struct {
	TargetV  int32 // mV, Complete when reached
	Current  int32 // mA commanded
	Limit    int32 // mA, Error above it; 0 means Current
	Capacity int32 // mAh ceiling, 0 = none
	Balance  bool
}

// SimpleCharge charges at constant current up to a target voltage.
type SimpleCharge struct {
	chg Actuator
	src Source
	bal Balancer
	cfg SimpleChargeConfig
}

// NewSimpleCharge binds the strategy to its actuators. bal may be nil.
func NewSimpleCharge(chg Actuator, src Source, bal Balancer) *SimpleCharge {
	return &SimpleCharge{chg: chg, src: src, bal: bal}
}

func (s *SimpleCharge) Kind() Kind { return KindSimpleCharge }

// Configure sets the targets for the next run.
func (s *SimpleCharge) Configure(c SimpleChargeConfig) {
	if c.Limit <= 0 {
		c.Limit = c.Current
	}
	s.cfg = c
}

func (s *SimpleCharge) PowerOn() {
	s.chg.PowerOn()
	s.chg.SetRealValue(s.cfg.Current)
	if s.cfg.Balance && s.bal != nil {
		s.bal.PowerOn()
	}
}

func (s *SimpleCharge) PowerOff(r power.Reason) {
	s.chg.PowerOff(r)
	if s.bal != nil {
		s.bal.PowerOff()
	}
}

func (s *SimpleCharge) DoStrategy() Status {
	if s.cfg.Balance && s.bal != nil {
		s.bal.Step()
	}
	if s.chg.Current() > s.cfg.Limit {
		return Error
	}
	if s.chg.Vout() >= s.cfg.TargetV {
		return Complete
	}
	if s.cfg.Capacity > 0 && s.chg.Charge() > s.cfg.Capacity {
		return Complete
	}
	return Running
}

func (s *SimpleCharge) IsStable() bool {
	return s.src.IsStable(calib.VoutPlus) && s.src.IsStable(calib.Ismps) &&
		balanceStable(s.cfg.Balance, s.bal)
}
