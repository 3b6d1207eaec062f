// Package calib converts raw ADC counts into physical units and back.
//
// Every channel owns one two-point calibration pair. Conversion is affine
// and extrapolates outside the pair, so it never fails at run time; a
// degenerate pair is rejected when the table is committed.
//
// Units: millivolts, milliamps and centi-degrees Celsius.
package calib

import (
	"chargecode-go/errcode"
	"chargecode-go/x/mathx"
)

// Channel identifies one physical quantity.
type Channel uint8

const (
	VoutPlus Channel = iota
	VoutMinus
	Ismps
	Idischarge
	VoutMux
	Tintern
	Vin
	Textern
	Vb0 // balance port reference pin
	Vb1
	Vb2
	Vb3
	Vb4
	Vb5
	Vb6
	IsmpsSet
	IdischargeSet

	NumChannels
)

// MaxBalanceCells is the number of cells the balance port can sense.
const MaxBalanceCells = int(Vb6 - Vb0)

// Measured channels are sampled by the ADC; the rest are setpoints.
const NumMeasured = int(IsmpsSet)

var names = [...]string{
	"vout_plus", "vout_minus", "ismps", "idischarge",
	"vout_mux", "tintern", "vin", "textern",
	"vb0", "vb1", "vb2", "vb3", "vb4", "vb5", "vb6",
	"ismps_set", "idischarge_set",
}

var _ [NumChannels]string = names

func (c Channel) String() string {
	if c < NumChannels {
		return names[c]
	}
	return "unknown"
}

// IsSetpoint reports whether c is a regulation setpoint channel.
func (c Channel) IsSetpoint() bool { return c == IsmpsSet || c == IdischargeSet }

// Cell returns the balance channel for cell i (0-based).
func Cell(i int) Channel { return Vb1 + Channel(i) }

// Point is one (raw, physical) reference.
type Point struct {
	Raw   uint16 `mapstructure:"raw" json:"raw"`
	Value int32  `mapstructure:"value" json:"value"`
}

// Pair is the low/high reference of one channel.
type Pair struct {
	Low  Point `mapstructure:"low" json:"low"`
	High Point `mapstructure:"high" json:"high"`
}

// Calibrate maps raw counts to a physical value.
func (p Pair) Calibrate(raw uint16) int32 {
	dr := int64(p.High.Raw) - int64(p.Low.Raw)
	if dr == 0 {
		return p.Low.Value
	}
	dv := int64(p.High.Value) - int64(p.Low.Value)
	x := int64(raw) - int64(p.Low.Raw)
	return int32(int64(p.Low.Value) + mathx.MulDiv(x, dv, dr))
}

// Inverse maps a physical target to the raw setpoint producing it.
func (p Pair) Inverse(value int32) uint16 {
	dv := int64(p.High.Value) - int64(p.Low.Value)
	if dv == 0 {
		return p.Low.Raw
	}
	dr := int64(p.High.Raw) - int64(p.Low.Raw)
	y := int64(value) - int64(p.Low.Value)
	return mathx.ClampU16(int64(p.Low.Raw) + mathx.MulDiv(y, dr, dv))
}

// Validate rejects pairs that cannot be converted in both directions.
func (p Pair) Validate() error {
	if p.High.Raw == p.Low.Raw {
		return errcode.Wrap(errcode.InvalidCalibration, "calib.Validate", "high.raw == low.raw")
	}
	if p.High.Value == p.Low.Value {
		return errcode.Wrap(errcode.InvalidCalibration, "calib.Validate", "high.value == low.value")
	}
	return nil
}

// Table holds one pair per channel.
type Table [NumChannels]Pair

// Calibrate converts raw for channel ch.
func (t *Table) Calibrate(ch Channel, raw uint16) int32 { return t[ch].Calibrate(raw) }

// Inverse converts a physical target for channel ch into raw counts.
func (t *Table) Inverse(ch Channel, value int32) uint16 { return t[ch].Inverse(value) }

// Validate checks every pair; the first bad channel is reported.
func (t *Table) Validate() error {
	for ch := Channel(0); ch < NumChannels; ch++ {
		if err := t[ch].Validate(); err != nil {
			e := err.(*errcode.E)
			e.Msg = ch.String() + ": " + e.Msg
			return e
		}
	}
	return nil
}

// Lookup finds a channel by name.
func Lookup(name string) (Channel, bool) {
	for i, n := range names {
		if n == name {
			return Channel(i), true
		}
	}
	return 0, false
}
