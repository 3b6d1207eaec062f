package settings

import (
	"strings"

	"chargecode-go/core/calib"
	"chargecode-go/errcode"
	"chargecode-go/x/mathx"
)

// Chemistry is a battery type.
type Chemistry uint8

const (
	Unknown Chemistry = iota
	NiCd
	NiMH
	Pb
	Life
	Lion
	Lipo
	Li430
	Li435
	NiZn

	NumChemistries
)

// Class groups chemistries that share programs.
type Class uint8

const (
	ClassNone Class = iota
	ClassLiXX
	ClassNiXX
	ClassPb
)

// PerCell are the per-cell voltages of one chemistry, in mV.
type PerCell struct {
	Name      string
	Class     Class
	Nominal   int32
	Charge    int32 // CV target, or the absolute ceiling for NiXX
	Discharge int32
	Storage   int32
	DeltaV    int32 // NiXX termination drop
	MaxCells  uint8
	MaxRth    int32 // milliohm, largest plausible resistance
	Overshoot int32 // largest IR compensation above the target
}

var chemistries = [...]PerCell{
	{"unknown", ClassNone, 1000, 1000, 1000, 0, 0, 0, 0, 0},
	{"nicd", ClassNiXX, 1200, 1820, 850, 0, 15, 18, 300, 100},
	{"nimh", ClassNiXX, 1200, 1800, 1000, 0, 5, 18, 300, 100},
	{"pb", ClassPb, 2000, 2460, 1750, 0, 0, 12, 300, 150},
	{"life", ClassLiXX, 3300, 3600, 2000, 3300, 0, 6, 500, 200},
	{"lion", ClassLiXX, 3600, 4100, 2500, 3750, 0, 6, 500, 200},
	{"lipo", ClassLiXX, 3700, 4200, 3000, 3850, 0, 6, 500, 200},
	{"li430", ClassLiXX, 3700, 4300, 3000, 3850, 0, 6, 500, 200},
	{"li435", ClassLiXX, 3700, 4350, 3000, 3850, 0, 6, 500, 200},
	{"nizn", ClassNiXX, 1600, 1900, 1300, 0, 5, 12, 300, 100},
}

var _ [NumChemistries]PerCell = chemistries

// Info returns the voltage table of c.
func (c Chemistry) Info() PerCell {
	if c >= NumChemistries {
		return chemistries[Unknown]
	}
	return chemistries[c]
}

func (c Chemistry) String() string { return c.Info().Name }

// Class returns the program family of c.
func (c Chemistry) Class() Class { return c.Info().Class }

// ParseChemistry looks up a chemistry by name (case-insensitive).
func ParseChemistry(s string) (Chemistry, bool) {
	s = strings.ToLower(s)
	for i, p := range chemistries {
		if p.Name == s {
			return Chemistry(i), true
		}
	}
	return Unknown, false
}

// Battery is the profile of the pack being charged.
type Battery struct {
	Chemistry Chemistry `mapstructure:"chemistry"`
	Cells     uint8     `mapstructure:"cells"`
	Capacity  int32     `mapstructure:"capacity"` // mAh, 0 = unlimited
	Ic        int32     `mapstructure:"ic"`       // mA
	Id        int32     `mapstructure:"id"`       // mA
}

// DefaultBattery is a 3S 2200mAh LiPo charged at 1C.
func DefaultBattery() Battery {
	return Battery{Chemistry: Lipo, Cells: 3, Capacity: 2200, Ic: 2200, Id: 1000}
}

func (b Battery) pack(v int32) int32 { return v * int32(b.Cells) }

// VCharge is the pack charge target.
func (b Battery) VCharge() int32 { return b.pack(b.Chemistry.Info().Charge) }

// VDischarge is the pack discharge cut-off.
func (b Battery) VDischarge() int32 { return b.pack(b.Chemistry.Info().Discharge) }

// VStorage is the pack storage voltage.
func (b Battery) VStorage() int32 { return b.pack(b.Chemistry.Info().Storage) }

// DeltaV is the pack NiXX termination drop.
func (b Battery) DeltaV() int32 { return b.pack(b.Chemistry.Info().DeltaV) }

// MaxRth is the largest plausible pack resistance (milliohm).
func (b Battery) MaxRth() int32 { return b.pack(b.Chemistry.Info().MaxRth) }

// Overshoot caps the compensation of the terminal voltage (mV).
func (b Battery) Overshoot() int32 { return b.pack(b.Chemistry.Info().Overshoot) }

// powerMargin keeps commanded currents this far (per mille) inside the
// supervisor's power limits.
const powerMargin = 950

// powerLimited caps i (mA) so that i at v (mV) stays within p (mW).
func powerLimited(i, v, p int32) int32 {
	if v <= 0 || p <= 0 {
		return i
	}
	return mathx.Min(i, int32(int64(p)*powerMargin/int64(v)))
}

// ChargeCurrent is Ic limited by max_ic and by max_pc at the highest
// terminal voltage a compensated charge can reach.
func (b Battery) ChargeCurrent(s *Settings) int32 {
	return powerLimited(mathx.Min(b.Ic, s.MaxIc), b.VCharge()+b.Overshoot(), s.MaxPc)
}

// DischargeCurrent is Id limited by max_id and by max_pd at a full pack.
func (b Battery) DischargeCurrent(s *Settings) int32 {
	return powerLimited(mathx.Min(b.Id, s.MaxId), b.VCharge(), s.MaxPd)
}

// ChargeCapacityLimit is the coulomb ceiling for a charge run (mAh). A
// zero capacity means no ceiling.
func (b Battery) ChargeCapacityLimit() int32 {
	if b.Capacity <= 0 {
		return 0
	}
	return b.Capacity * 5 / 4
}

// MinIc is the charge termination current: Ic/10, or Ic/5 for fast charge.
func (b Battery) MinIc(fast bool) int32 {
	if fast {
		return b.Ic / 5
	}
	return b.Ic / 10
}

// MinId is the discharge termination current.
func (b Battery) MinId() int32 { return b.Id / 10 }

// Validate checks b against committed settings s.
func (b Battery) Validate(s *Settings) error {
	info := b.Chemistry.Info()
	switch {
	case b.Chemistry == Unknown || b.Chemistry >= NumChemistries:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "unknown chemistry")
	case b.Cells == 0 || b.Cells > info.MaxCells:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "cell count out of range")
	case info.Class == ClassLiXX && int(b.Cells) > calib.MaxBalanceCells:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "too many cells for the balance port")
	case b.Ic < s.MinIc || b.Ic > s.MaxIc:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "ic outside limits")
	case b.Id < s.MinId || b.Id > s.MaxId:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "id outside limits")
	case b.VCharge() > s.MaxVc:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "charge voltage above max_vc")
	case b.Capacity < 0:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "negative capacity")
	case b.ChargeCurrent(s) < s.MinIc:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "max_pc leaves less than min_ic")
	case b.DischargeCurrent(s) < s.MinId:
		return errcode.Wrap(errcode.InvalidBattery, "battery.Validate", "max_pd leaves less than min_id")
	}
	return nil
}
