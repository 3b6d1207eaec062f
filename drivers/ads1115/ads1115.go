// Package ads1115 drives the ADS1115 16-bit I2C ADC in single-shot mode.
// Measurement is two-phase:
//
//	d.Trigger(in)          // start a conversion on input in (fast)
//	raw, err := d.Collect() // ErrNotReady while converting
//
// Read does trigger + bounded polling. Bank spreads a dense channel index
// over several chips so a board with more inputs than one ADS1115 can be
// sampled as a single ADC.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided.
package ads1115

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C addresses selected by the ADDR pin.
const (
	AddressGND uint16 = 0x48
	AddressVDD uint16 = 0x49
	AddressSDA uint16 = 0x4A
	AddressSCL uint16 = 0x4B
)

const (
	regConversion = 0x00
	regConfig     = 0x01

	cfgOS         = 1 << 15 // write: start, read: idle
	cfgMuxSingle  = 0x4 << 12
	cfgModeSingle = 1 << 8
	cfgCompOff    = 0x3 // comparator disabled
)

// Gain selects the full-scale range.
type Gain uint16

const (
	Gain6144 Gain = 0 << 9 // +/-6.144V
	Gain4096 Gain = 1 << 9
	Gain2048 Gain = 2 << 9
	Gain1024 Gain = 3 << 9
	Gain512  Gain = 4 << 9
	Gain256  Gain = 5 << 9
)

// Rate is the data rate.
type Rate uint16

const (
	Rate8   Rate = 0 << 5
	Rate16  Rate = 1 << 5
	Rate32  Rate = 2 << 5
	Rate64  Rate = 3 << 5
	Rate128 Rate = 4 << 5
	Rate250 Rate = 5 << 5
	Rate475 Rate = 6 << 5
	Rate860 Rate = 7 << 5
)

// Errors returned by the driver.
var (
	ErrNotReady = errors.New("ads1115: not ready")
	ErrTimeout  = errors.New("ads1115: timeout")
	ErrInput    = errors.New("ads1115: input out of range")
)

// Config controls the conversion. All fields are optional.
type Config struct {
	Address uint16 // default AddressGND
	Gain    Gain   // default Gain4096
	Rate    Rate   // default Rate860
	// Polls bounds Read's wait on a conversion. Default 64.
	Polls int
}

// Device is one ADS1115.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config
	w   [3]byte
	r   [2]byte
}

// New creates a device on an already configured bus. It does not touch
// the chip.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = AddressGND
	}
	if cfg.Gain == 0 && cfg.Rate == 0 {
		cfg.Gain, cfg.Rate = Gain4096, Rate860
	}
	if cfg.Polls <= 0 {
		cfg.Polls = 64
	}
	return &Device{bus: bus, Address: cfg.Address, cfg: cfg}
}

// Trigger starts a single-shot conversion of single-ended input in (0..3).
func (d *Device) Trigger(in int) error {
	if in < 0 || in > 3 {
		return ErrInput
	}
	v := uint16(cfgOS|cfgMuxSingle|cfgModeSingle|cfgCompOff) |
		uint16(in)<<12 | uint16(d.cfg.Gain) | uint16(d.cfg.Rate)
	return d.writeWord(regConfig, v)
}

// Collect returns the last conversion scaled to the full 16-bit range, or
// ErrNotReady while the chip is still converting. Negative readings of a
// single-ended input are clipped to zero.
func (d *Device) Collect() (uint16, error) {
	st, err := d.readWord(regConfig)
	if err != nil {
		return 0, err
	}
	if st&cfgOS == 0 {
		return 0, ErrNotReady
	}
	v, err := d.readWord(regConversion)
	if err != nil {
		return 0, err
	}
	if int16(v) < 0 {
		return 0, nil
	}
	return v << 1, nil
}

// Read converts input in, polling at most Polls times.
func (d *Device) Read(in int) (uint16, error) {
	if err := d.Trigger(in); err != nil {
		return 0, err
	}
	for i := 0; i < d.cfg.Polls; i++ {
		v, err := d.Collect()
		if err != ErrNotReady {
			return v, err
		}
	}
	return 0, ErrTimeout
}

// I2C 16-bit register access (big-endian).

func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeWord(reg byte, v uint16) error {
	d.w[0] = reg
	d.w[1] = byte(v >> 8)
	d.w[2] = byte(v)
	return d.bus.Tx(d.Address, d.w[:3], nil)
}

// Pin addresses one input of one chip in a Bank.
type Pin struct {
	Chip  uint8
	Input uint8
}

// Bank samples a dense channel index across several chips.
type Bank struct {
	chips []*Device
	pins  []Pin
}

// NewBank maps channel i to pins[i].
func NewBank(chips []*Device, pins []Pin) *Bank {
	return &Bank{chips: chips, pins: pins}
}

// Read converts channel i.
func (b *Bank) Read(i int) (uint16, error) {
	if i < 0 || i >= len(b.pins) {
		return 0, ErrInput
	}
	p := b.pins[i]
	if int(p.Chip) >= len(b.chips) {
		return 0, ErrInput
	}
	return b.chips[p.Chip].Read(int(p.Input))
}

// Sequential maps n channels onto consecutive chip inputs: chip 0 inputs
// 0..3, then chip 1 and so on.
func Sequential(n int) []Pin {
	pins := make([]Pin, n)
	for i := range pins {
		pins[i] = Pin{Chip: uint8(i / 4), Input: uint8(i % 4)}
	}
	return pins
}
