package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/power"
)

// StorageConfig are the targets of a storage run.
type StorageConfig struct {
	TargetV int32 // mV storage voltage
	Ic, Id  int32 // mA
	MinIc   int32
	MinId   int32
	Band    int32 // mV dead band around TargetV, 0 = 10mV
	Balance bool

	MaxRth    int32 // milliohm, see TheveninConfig
	Overshoot int32 // mV
}

type storageState uint8

const (
	storageChoose storageState = iota
	storageCharge
	storageDischarge
	storageHold
)

// Storage brings a pack to its storage voltage and keeps it there. It is
// open-ended: it never completes on its own.
type Storage struct {
	src Source
	bal Balancer
	chg *TheveninCharge
	dis *TheveninDischarge
	cfg StorageConfig

	st storageState
}

// NewStorage composes a charge and a discharge engine over the actuators.
func NewStorage(chg, dis Actuator, src Source, bal Balancer) *Storage {
	return &Storage{
		src: src,
		bal: bal,
		chg: NewTheveninCharge(chg, src, bal),
		dis: NewTheveninDischarge(dis, src, bal),
	}
}

func (s *Storage) Kind() Kind { return KindStorage }

// Configure sets the targets for the next run.
func (s *Storage) Configure(c StorageConfig) {
	if c.Band <= 0 {
		c.Band = 10
	}
	s.cfg = c
	s.chg.Configure(TheveninConfig{
		TargetV: c.TargetV, Current: c.Ic, MinCurrent: c.MinIc, Balance: c.Balance,
		MaxRth: c.MaxRth, Overshoot: c.Overshoot,
	})
	s.dis.Configure(TheveninConfig{
		TargetV: c.TargetV, Current: c.Id, MinCurrent: c.MinId, Balance: c.Balance,
		MaxRth: c.MaxRth, Overshoot: c.Overshoot,
	})
}

// Config returns the targets of the current run.
func (s *Storage) Config() StorageConfig { return s.cfg }

func (s *Storage) PowerOn() {
	s.st = storageChoose
	if s.cfg.Balance && s.bal != nil {
		s.bal.PowerOn()
	}
}

func (s *Storage) PowerOff(r power.Reason) {
	s.chg.PowerOff(r)
	s.dis.PowerOff(r)
}

// State names the current direction for presentation.
func (s *Storage) State() string {
	switch s.st {
	case storageCharge:
		return "charge"
	case storageDischarge:
		return "discharge"
	case storageHold:
		return "hold"
	}
	return "choose"
}

func (s *Storage) DoStrategy() Status {
	switch s.st {
	case storageCharge, storageDischarge:
		var sub Strategy = s.chg
		if s.st == storageDischarge {
			sub = s.dis
		}
		switch sub.DoStrategy() {
		case Error:
			return Error
		case Complete, CompleteAndExit:
			sub.PowerOff(power.ReasonChargingComplete)
			if s.cfg.Balance && s.bal != nil {
				s.bal.PowerOn()
			}
			s.st = storageHold
		}
		return Running
	}

	if s.cfg.Balance && s.bal != nil {
		s.bal.Step()
	}
	if !s.src.IsStable(calib.VoutPlus) {
		return Running
	}
	v := s.src.Read(calib.VoutPlus) - s.src.Read(calib.VoutMinus)
	band := s.cfg.Band
	if s.st == storageHold {
		band *= 2
	}
	switch {
	case v < s.cfg.TargetV-band:
		s.st = storageCharge
		s.chg.PowerOn()
	case v > s.cfg.TargetV+band:
		s.st = storageDischarge
		s.dis.PowerOn()
	default:
		s.st = storageHold
	}
	return Running
}

func (s *Storage) IsStable() bool {
	switch s.st {
	case storageCharge:
		return s.chg.IsStable()
	case storageDischarge:
		return s.dis.IsStable()
	}
	return s.src.IsStable(calib.VoutPlus) && balanceStable(s.cfg.Balance, s.bal)
}
