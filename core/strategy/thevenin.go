package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/power"
	"chargecode-go/x/mathx"
)

// Thevenin is the battery model V = Vth + I*Rth.
type Thevenin struct {
	Vth       int32 // mV, open-circuit voltage at the last probe
	Rth       int32 // milliohm
	Valid     bool
	Estimates int
}

// noiseDrop is the largest negative voltage step (mV) still read as zero
// resistance rather than an implausible estimate.
const noiseDrop = 10

// Estimate updates the model from a probe: drop is the voltage difference
// caused by removing current i. It reports false when the result is not
// physically plausible.
func (t *Thevenin) Estimate(voc, drop, i, maxRth int32) bool {
	if i <= 0 || drop < -noiseDrop {
		return false
	}
	r := int32(mathx.MulDiv(int64(mathx.Max(drop, 0)), 1000, int64(i)))
	if maxRth > 0 && r > maxRth {
		return false
	}
	t.Vth, t.Rth, t.Valid = voc, r, true
	t.Estimates++
	return true
}

// Drop is the IR drop (mV) at current i.
func (t *Thevenin) Drop(i int32) int32 {
	if !t.Valid {
		return 0
	}
	return int32(int64(i) * int64(t.Rth) / 1000)
}

// TheveninConfig are the targets of a compensated charge or discharge.
type TheveninConfig struct {
	TargetV    int32 // mV, true cell voltage to reach
	Current    int32 // mA, starting (maximum) current
	MinCurrent int32 // mA, Complete once the taper falls below it
	Capacity   int32 // mAh ceiling, 0 = none
	Limit      int32 // mA runaway limit, 0 = Current + 10%
	Balance    bool

	Overshoot  int32  // mV cap on the compensation, 0 = uncapped
	MaxRth     int32  // milliohm, larger estimates are a fault; 0 = unchecked
	ProbeEvery uint16 // settled samples between resistance probes
	Settle     uint16 // samples to wait after a setpoint change
	ProbeLimit uint16 // samples a probe may wait for stability
}

func (c *TheveninConfig) defaults() {
	if c.Limit <= 0 {
		c.Limit = c.Current + c.Current/10 + 50
	}
	if c.ProbeEvery == 0 {
		c.ProbeEvery = 60
	}
	if c.Settle == 0 {
		c.Settle = 8
	}
	if c.ProbeLimit == 0 {
		c.ProbeLimit = 100
	}
}

type phase uint8

const (
	phaseRegulate phase = iota
	phaseProbe
	phaseBalance
)

// thevenin is the shared engine; dir is +1 for charge and -1 for discharge.
type thevenin struct {
	act Actuator
	src Source
	bal Balancer
	cur calib.Channel
	dir int32
	cfg TheveninConfig

	phase   phase
	i       int32
	model   Thevenin
	samples uint16
	hold    uint16
	vLoad   int32
	iLoad   int32
}

func (t *thevenin) configure(c TheveninConfig) {
	c.defaults()
	t.cfg = c
}

func (t *thevenin) powerOn() {
	t.phase = phaseRegulate
	t.i = t.cfg.Current
	t.model = Thevenin{}
	t.samples, t.hold = 0, t.cfg.Settle
	t.act.PowerOn()
	t.act.SetRealValue(t.i)
	if t.cfg.Balance && t.bal != nil {
		t.bal.PowerOn()
	}
}

func (t *thevenin) powerOff(r power.Reason) {
	t.act.PowerOff(r)
	if t.bal != nil {
		t.bal.PowerOff()
	}
}

func (t *thevenin) isStable() bool {
	return t.src.IsStable(calib.VoutPlus) && t.src.IsStable(t.cur) &&
		balanceStable(t.cfg.Balance, t.bal)
}

// ceiling is the terminal voltage that corresponds to TargetV at the
// operating current.
func (t *thevenin) ceiling() int32 {
	comp := t.model.Drop(t.i)
	if t.cfg.Overshoot > 0 {
		comp = mathx.Min(comp, t.cfg.Overshoot)
	}
	return t.cfg.TargetV + t.dir*comp
}

func (t *thevenin) set(i int32) {
	t.i = i
	t.act.SetRealValue(i)
	t.hold = t.cfg.Settle
}

func (t *thevenin) finish() Status {
	if t.cfg.Balance && t.bal != nil && t.bal.IsWorking() {
		t.set(0)
		t.phase = phaseBalance
		return Running
	}
	return Complete
}

func (t *thevenin) step() Status {
	balancing := t.cfg.Balance && t.bal != nil
	if balancing {
		t.bal.Step()
	}
	if t.cfg.Capacity > 0 && t.act.Charge() > t.cfg.Capacity {
		return Complete
	}
	if t.act.Current() > t.cfg.Limit {
		return Error
	}
	if t.hold > 0 {
		t.hold--
		return Running
	}

	switch t.phase {
	case phaseBalance:
		if !t.bal.IsWorking() {
			return Complete
		}
		return Running

	case phaseProbe:
		t.samples++
		if !t.isStable() {
			if t.samples > t.cfg.ProbeLimit {
				t.resume()
			}
			return Running
		}
		voc := t.act.Vout()
		if !t.model.Estimate(voc, t.dir*(t.vLoad-voc), t.iLoad, t.cfg.MaxRth) {
			return Error
		}
		if t.dir*(voc-t.cfg.TargetV) >= 0 {
			return t.finish()
		}
		t.resume()
		return Running
	}

	if !t.isStable() {
		return Running
	}
	t.samples++
	v := t.act.Vout()
	if t.dir*(v-t.ceiling()) >= 0 {
		next := t.i - mathx.Max(t.i/8, 1)
		if next < t.cfg.MinCurrent {
			return t.finish()
		}
		t.set(next)
		return Running
	}
	if t.samples >= t.cfg.ProbeEvery {
		t.vLoad, t.iLoad = v, t.act.Current()
		t.samples = 0
		t.phase = phaseProbe
		t.act.SetRealValue(0)
		t.hold = t.cfg.Settle
	}
	return Running
}

func (t *thevenin) resume() {
	t.phase = phaseRegulate
	t.samples = 0
	t.set(t.i)
}

// TheveninCharge is a charge compensated for the pack's internal
// resistance, tapering current until it falls below the floor.
type TheveninCharge struct{ thevenin }

// NewTheveninCharge binds the strategy to the charge stage. bal may be nil.
func NewTheveninCharge(chg Actuator, src Source, bal Balancer) *TheveninCharge {
	return &TheveninCharge{thevenin{act: chg, src: src, bal: bal, cur: calib.Ismps, dir: 1}}
}

func (s *TheveninCharge) Kind() Kind                 { return KindTheveninCharge }
func (s *TheveninCharge) Configure(c TheveninConfig) { s.configure(c) }
func (s *TheveninCharge) PowerOn()                   { s.powerOn() }
func (s *TheveninCharge) PowerOff(r power.Reason)    { s.powerOff(r) }
func (s *TheveninCharge) DoStrategy() Status         { return s.step() }
func (s *TheveninCharge) IsStable() bool             { return s.isStable() }
func (s *TheveninCharge) Model() Thevenin            { return s.model }
func (s *TheveninCharge) Current() int32             { return s.i }
func (s *TheveninCharge) Config() TheveninConfig     { return s.cfg }

// TheveninDischarge is the discharge counterpart.
type TheveninDischarge struct{ thevenin }

// NewTheveninDischarge binds the strategy to the discharger.
func NewTheveninDischarge(dis Actuator, src Source, bal Balancer) *TheveninDischarge {
	return &TheveninDischarge{thevenin{act: dis, src: src, bal: bal, cur: calib.Idischarge, dir: -1}}
}

func (s *TheveninDischarge) Kind() Kind                 { return KindTheveninDischarge }
func (s *TheveninDischarge) Configure(c TheveninConfig) { s.configure(c) }
func (s *TheveninDischarge) PowerOn()                   { s.powerOn() }
func (s *TheveninDischarge) PowerOff(r power.Reason)    { s.powerOff(r) }
func (s *TheveninDischarge) DoStrategy() Status         { return s.step() }
func (s *TheveninDischarge) IsStable() bool             { return s.isStable() }
func (s *TheveninDischarge) Model() Thevenin            { return s.model }
func (s *TheveninDischarge) Current() int32             { return s.i }
func (s *TheveninDischarge) Config() TheveninConfig     { return s.cfg }
