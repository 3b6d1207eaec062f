// Package monitor is the safety supervisor. Run evaluates the latest
// physical values against the run's limits in a fixed priority order and
// reports the first violation. It never recovers on its own.
package monitor

import (
	"sync/atomic"

	"chargecode-go/core/calib"
	"chargecode-go/core/settings"
	"chargecode-go/errcode"
)

// Status is OK or the first violated condition.
type Status uint8

const (
	OK Status = iota
	OverTemperature
	InputVoltageLow
	OverVoltage
	OverCurrentCharge
	OverCurrentDischarge
	OverPowerCharge
	OverPowerDischarge
	SensorImplausible

	numStatus
)

var codes = [...]errcode.Code{
	errcode.OK,
	errcode.OverTemperature,
	errcode.InputVoltageLow,
	errcode.OverVoltage,
	errcode.OverCurrentCharge,
	errcode.OverCurrentDischarge,
	errcode.OverPowerCharge,
	errcode.OverPowerDischarge,
	errcode.SensorImplausible,
}

var _ [numStatus]errcode.Code = codes

// Code maps the status onto the bus-facing error code.
func (s Status) Code() errcode.Code {
	if s >= numStatus {
		return errcode.Error
	}
	return codes[s]
}

func (s Status) String() string { return string(s.Code()) }

// Err returns nil for OK, the matching code otherwise.
func (s Status) Err() error {
	if s == OK {
		return nil
	}
	return s.Code()
}

// Source is what the supervisor reads.
type Source interface {
	Read(ch calib.Channel) int32
}

// Fan is the cooling fan output.
type Fan interface {
	SetFan(on bool)
}

// Range is an absolute plausibility window for one channel.
type Range struct{ Lo, Hi int32 }

// DefaultSaneRanges marks readings a connected, healthy sensor cannot
// produce. Zero ranges are not checked.
func DefaultSaneRanges() [calib.NumChannels]Range {
	var r [calib.NumChannels]Range
	r[calib.Tintern] = Range{-4000, 15000}
	r[calib.Textern] = Range{-4000, 15000}
	r[calib.Vin] = Range{-500, 30000}
	r[calib.VoutPlus] = Range{-500, 35000}
	r[calib.Ismps] = Range{-500, 12000}
	r[calib.Idischarge] = Range{-500, 3000}
	return r
}

// Monitor evaluates limits armed at run start.
type Monitor struct {
	src  Source
	fan  Fan
	sane [calib.NumChannels]Range

	limits atomic.Pointer[settings.Limits]

	// fan hysteresis, interrupt context only
	fanOn bool
}

// fanHysteresis is how far (cC) below FanTempOn the fan switches off.
const fanHysteresis = 500

// New returns a supervisor over src. fan may be nil.
func New(src Source, fan Fan) *Monitor {
	m := &Monitor{src: src, fan: fan, sane: DefaultSaneRanges()}
	l := settings.Default(settings.IMaxB6).Limits()
	m.limits.Store(&l)
	return m
}

// SetSaneRange overrides the plausibility window of ch.
func (m *Monitor) SetSaneRange(ch calib.Channel, r Range) { m.sane[ch] = r }

// Arm installs the limits for the next run.
func (m *Monitor) Arm(l settings.Limits) { m.limits.Store(&l) }

// Limits returns the armed limits.
func (m *Monitor) Limits() settings.Limits { return *m.limits.Load() }

func (m *Monitor) vout() int32 {
	return m.src.Read(calib.VoutPlus) - m.src.Read(calib.VoutMinus)
}

// Run reports the first violated condition in priority order.
func (m *Monitor) Run() Status {
	l := m.limits.Load()
	tin := m.src.Read(calib.Tintern)
	if tin > l.InternTempOff {
		return OverTemperature
	}
	if l.ExternT && m.src.Read(calib.Textern) > l.ExternTempOff {
		return OverTemperature
	}
	if m.src.Read(calib.Vin) < l.InputVoltageLow {
		return InputVoltageLow
	}
	vout := m.vout()
	if vout > l.MaxVc {
		return OverVoltage
	}
	ic := m.src.Read(calib.Ismps)
	id := m.src.Read(calib.Idischarge)
	if ic > l.MaxIc {
		return OverCurrentCharge
	}
	if id > l.MaxId {
		return OverCurrentDischarge
	}
	// mV * mA / 1000 = mW
	if int64(vout)*int64(ic)/1000 > int64(l.MaxPc) {
		return OverPowerCharge
	}
	if int64(vout)*int64(id)/1000 > int64(l.MaxPd) {
		return OverPowerDischarge
	}
	for ch := calib.Channel(0); ch < calib.NumChannels; ch++ {
		r := m.sane[ch]
		if r == (Range{}) {
			continue
		}
		if ch == calib.Textern && !l.ExternT {
			continue
		}
		if v := m.src.Read(ch); v < r.Lo || v > r.Hi {
			return SensorImplausible
		}
	}
	return OK
}

// DoInterrupt is the fast hook: it runs the fan from the internal
// temperature with hysteresis.
func (m *Monitor) DoInterrupt() {
	if m.fan == nil {
		return
	}
	l := m.limits.Load()
	t := m.src.Read(calib.Tintern)
	on := m.fanOn
	switch {
	case !l.FanOn:
		on = false
	case t >= l.FanTempOn:
		on = true
	case t < l.FanTempOn-fanHysteresis:
		on = false
	}
	if on != m.fanOn {
		m.fanOn = on
		m.fan.SetFan(on)
	}
}
