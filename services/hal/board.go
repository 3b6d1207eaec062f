// Package hal binds the control core to a board: PWM outputs for the
// charge stage and the discharge load, balance and fan pins, the
// front-panel buttons and the external ADCs.
//
// The platform-independent parts live here and are tested on the host;
// board_rp2.go claims the pins through TinyGo's machine package.
package hal

import (
	"strconv"

	"chargecode-go/core/calib"
	"chargecode-go/drivers/ads1115"
	"chargecode-go/errcode"
)

// PWMPin is one PWM output of the board.
type PWMPin struct {
	Pin       int
	FreqHz    uint32
	ActiveLow bool
}

// I2CBus is the bus the ADCs sit on.
type I2CBus struct {
	ID       string // "i2c0" or "i2c1"
	SDA, SCL int
	Hz       uint32
}

// Board describes the wiring of one charger board. Pin numbers are GPIO
// numbers.
type Board struct {
	Name string

	SMPS       PWMPin
	Discharger PWMPin

	Balance [calib.MaxBalanceCells]int // bleed switch per cell
	Fan     int
	FanLow  bool

	// Buttons in key order: inc, dec, start, stop. Active low with pull-up.
	Buttons [4]int

	I2C       I2CBus
	ADCAddrs  []uint16
	ADCInputs [calib.NumMeasured]ads1115.Pin
}

// PicoCharger is the reference RP2040 wiring. The measured channels map
// onto four ADS1115 chips in channel order.
var PicoCharger = Board{
	Name:       "pico_charger",
	SMPS:       PWMPin{Pin: 16, FreqHz: 100_000},
	Discharger: PWMPin{Pin: 18, FreqHz: 20_000},
	Balance:    [calib.MaxBalanceCells]int{6, 7, 8, 9, 10, 11},
	Fan:        17,
	Buttons:    [4]int{12, 13, 14, 15},
	I2C:        I2CBus{ID: "i2c0", SDA: 4, SCL: 5, Hz: 400_000},
	ADCAddrs: []uint16{
		ads1115.AddressGND, ads1115.AddressVDD, ads1115.AddressSDA, ads1115.AddressSCL,
	},
	ADCInputs: sequential(),
}

func sequential() (p [calib.NumMeasured]ads1115.Pin) {
	copy(p[:], ads1115.Sequential(calib.NumMeasured))
	return p
}

// Validate rejects a board that claims a pin twice or addresses a chip it
// does not list.
func (b *Board) Validate() error {
	const op = "hal.Validate"
	claimed := map[int]string{}
	claim := func(pin int, what string) error {
		if pin < 0 {
			return errcode.Wrap(errcode.InvalidParams, op, what+": negative pin")
		}
		if prev, ok := claimed[pin]; ok {
			return errcode.Wrap(errcode.Conflict, op, "pin "+strconv.Itoa(pin)+" claimed by "+prev+" and "+what)
		}
		claimed[pin] = what
		return nil
	}

	uses := []struct {
		pin  int
		what string
	}{
		{b.SMPS.Pin, "smps"},
		{b.Discharger.Pin, "discharger"},
		{b.Fan, "fan"},
		{b.I2C.SDA, "sda"},
		{b.I2C.SCL, "scl"},
	}
	for i, p := range b.Balance {
		uses = append(uses, struct {
			pin  int
			what string
		}{p, "balance" + strconv.Itoa(i)})
	}
	for i, p := range b.Buttons {
		uses = append(uses, struct {
			pin  int
			what string
		}{p, "button" + strconv.Itoa(i)})
	}
	for _, u := range uses {
		if err := claim(u.pin, u.what); err != nil {
			return err
		}
	}

	for i, in := range b.ADCInputs {
		if int(in.Chip) >= len(b.ADCAddrs) || in.Input > 3 {
			return errcode.Wrap(errcode.InvalidParams, op, calib.Channel(i).String()+": no such adc input")
		}
	}
	if b.SMPS.FreqHz == 0 || b.Discharger.FreqHz == 0 {
		return errcode.Wrap(errcode.InvalidParams, op, "pwm frequency must be set")
	}
	return nil
}
