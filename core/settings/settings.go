// Package settings holds the operator-configurable limits and the battery
// profile a run is started with. Values are committed through Check, which
// is the only place limit ordering and hardware ceilings are enforced; the
// control core reads a Limits snapshot at run start and never writes back.
package settings

import (
	"chargecode-go/core/calib"
	"chargecode-go/errcode"
	"chargecode-go/x/mathx"
)

// UART output modes.
type UARTMode uint8

const (
	UARTDisabled UARTMode = iota
	UARTNormal
	UARTDebug
)

var uartModes = [...]string{"disabled", "normal", "debug"}

func (m UARTMode) String() string {
	if int(m) < len(uartModes) {
		return uartModes[m]
	}
	return "unknown"
}

// ParseUARTMode looks up a UART mode by name.
func ParseUARTMode(s string) (UARTMode, bool) {
	for i, n := range uartModes {
		if n == s {
			return UARTMode(i), true
		}
	}
	return UARTDisabled, false
}

// UARTSpeeds lists the selectable baud rates, indexed by Settings.UARTSpeed.
var UARTSpeeds = [...]uint32{9600, 19200, 38400, 57600, 115200}

// Hardware describes absolute ceilings of a board.
type Hardware struct {
	MaxIc int32 // mA
	MaxId int32 // mA
	MaxVc int32 // mV
	MaxPc int32 // mW
	MaxPd int32 // mW

	// Highest raw values the PWM outputs accept.
	SMPSUpperBound       uint16
	DischargerUpperBound uint16
}

// IMaxB6 is the reference board.
var IMaxB6 = Hardware{
	MaxIc: 5000, MaxId: 1000, MaxVc: 27000, MaxPc: 60000, MaxPd: 5000,
	SMPSUpperBound: 60000, DischargerUpperBound: 12000,
}

// Settings are the global charger options.
type Settings struct {
	FanOn            bool  `mapstructure:"fan_on"`
	FanTempOn        int32 `mapstructure:"fan_temp_on"`        // cC
	DischargeTempOff int32 `mapstructure:"discharge_temp_off"` // cC
	ExternT          bool  `mapstructure:"extern_t"`
	ExternTCO        int32 `mapstructure:"extern_tco"` // cC
	AudioBeep        bool  `mapstructure:"audio_beep"`
	HardwareLimits   bool  `mapstructure:"hardware_limits"`

	MinIc int32 `mapstructure:"min_ic"` // mA
	MaxIc int32 `mapstructure:"max_ic"`
	MinId int32 `mapstructure:"min_id"`
	MaxId int32 `mapstructure:"max_id"`
	MaxPc int32 `mapstructure:"max_pc"` // mW
	MaxPd int32 `mapstructure:"max_pd"`
	MaxVc int32 `mapstructure:"max_vc"` // mV

	InputVoltageLow int32 `mapstructure:"input_voltage_low"` // mV

	AdcNoise  bool     `mapstructure:"adc_noise"`
	UART      UARTMode `mapstructure:"uart"`
	UARTSpeed uint8    `mapstructure:"uart_speed"`
	Debug     bool     `mapstructure:"debug"`
}

// Default returns the factory settings for hw.
func Default(hw Hardware) Settings {
	return Settings{
		FanOn:            true,
		FanTempOn:        5000,
		DischargeTempOff: 6000,
		ExternTCO:        6000,
		AudioBeep:        true,
		HardwareLimits:   true,
		MinIc:            50,
		MaxIc:            hw.MaxIc,
		MinId:            50,
		MaxId:            hw.MaxId,
		MaxPc:            hw.MaxPc,
		MaxPd:            hw.MaxPd,
		MaxVc:            hw.MaxVc,
		InputVoltageLow:  10000,
		UART:             UARTDisabled,
		UARTSpeed:        3,
	}
}

// Check commits s against hw. Maxima are clamped to the hardware ceilings
// when HardwareLimits is set; any remaining inconsistency is rejected.
func (s *Settings) Check(hw Hardware) error {
	if s.HardwareLimits {
		s.MaxIc = mathx.Min(s.MaxIc, hw.MaxIc)
		s.MaxId = mathx.Min(s.MaxId, hw.MaxId)
		s.MaxVc = mathx.Min(s.MaxVc, hw.MaxVc)
		s.MaxPc = mathx.Min(s.MaxPc, hw.MaxPc)
		s.MaxPd = mathx.Min(s.MaxPd, hw.MaxPd)
	}
	switch {
	case s.MinIc <= 0 || s.MinId <= 0:
		return errcode.Wrap(errcode.InvalidLimits, "settings.Check", "minimum current must be positive")
	case s.MinIc > s.MaxIc:
		return errcode.Wrap(errcode.InvalidLimits, "settings.Check", "min_ic > max_ic")
	case s.MinId > s.MaxId:
		return errcode.Wrap(errcode.InvalidLimits, "settings.Check", "min_id > max_id")
	case s.MaxVc <= 0 || s.MaxPc <= 0 || s.MaxPd <= 0:
		return errcode.Wrap(errcode.InvalidLimits, "settings.Check", "maxima must be positive")
	case int(s.UARTSpeed) >= len(UARTSpeeds):
		return errcode.Wrap(errcode.InvalidLimits, "settings.Check", "uart_speed out of range")
	}
	return nil
}

// UARTBaud returns the selected baud rate.
func (s *Settings) UARTBaud() uint32 {
	return UARTSpeeds[mathx.Min(int(s.UARTSpeed), len(UARTSpeeds)-1)]
}

// SetLimitsBasedOnCalibration narrows the current and voltage limits to the
// part of the raw range where the calibration is trustworthy, then commits.
func (s *Settings) SetLimitsBasedOnCalibration(hw Hardware, t *calib.Table) error {
	const (
		minPermil = 15  // 1.5%
		maxPermil = 900 // 90%
	)
	lo := uint16(0xFFFF * minPermil / 1000)
	hi := uint16(0xFFFF * maxPermil / 1000)
	frac := func(top uint16, permil uint32) uint16 { return uint16(uint32(top) * permil / 1000) }

	s.MinIc = mathx.Max(t.Calibrate(calib.Ismps, lo), t.Calibrate(calib.IsmpsSet, frac(hw.SMPSUpperBound, minPermil)))
	s.MinId = mathx.Max(t.Calibrate(calib.Idischarge, lo), t.Calibrate(calib.IdischargeSet, frac(hw.DischargerUpperBound, minPermil)))
	s.MaxIc = mathx.Min(t.Calibrate(calib.Ismps, hi), t.Calibrate(calib.IsmpsSet, frac(hw.SMPSUpperBound, maxPermil)))
	s.MaxId = mathx.Min(t.Calibrate(calib.Idischarge, hi), t.Calibrate(calib.IdischargeSet, frac(hw.DischargerUpperBound, maxPermil)))
	s.MaxVc = t.Calibrate(calib.VoutPlus, hi)
	return s.Check(hw)
}

// Limits is the read-only snapshot the safety supervisor runs against.
type Limits struct {
	MaxIc, MaxId    int32
	MaxVc           int32
	MaxPc, MaxPd    int32
	InputVoltageLow int32

	InternTempOff int32
	ExternT       bool
	ExternTempOff int32

	FanOn     bool
	FanTempOn int32
}

// Limits snapshots the committed settings.
func (s Settings) Limits() Limits {
	return Limits{
		MaxIc: s.MaxIc, MaxId: s.MaxId, MaxVc: s.MaxVc,
		MaxPc: s.MaxPc, MaxPd: s.MaxPd,
		InputVoltageLow: s.InputVoltageLow,
		InternTempOff:   s.DischargeTempOff,
		ExternT:         s.ExternT,
		ExternTempOff:   s.ExternTCO,
		FanOn:           s.FanOn,
		FanTempOn:       s.FanTempOn,
	}
}
