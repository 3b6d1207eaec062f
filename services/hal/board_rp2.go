//go:build rp2040 || rp2350

package hal

import (
	"machine"

	"chargecode-go/drivers/ads1115"
	"chargecode-go/errcode"
	"chargecode-go/x/timex"
)

// pwmCtrl is the part of machine's PWM group the board needs.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroup(pin int) pwmCtrl {
	switch (pin >> 1) & 7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// Hardware is a board with every pin claimed.
type Hardware struct {
	ADC        ADC
	SMPS       *PWMOutput
	Discharger *PWMOutput
	Balance    BalancePins
	Fan        FanPin
	Buttons    ButtonPins
}

// Open claims b's pins. smpsUpper and disUpper are the raw setpoint
// ceilings of the two power paths.
func Open(b Board, smpsUpper, disUpper uint16) (*Hardware, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	hw := &Hardware{}

	var err error
	if hw.SMPS, err = openPWM(b.SMPS, smpsUpper); err != nil {
		return nil, err
	}
	if hw.Discharger, err = openPWM(b.Discharger, disUpper); err != nil {
		return nil, err
	}

	for _, n := range b.Balance {
		p := machine.Pin(n)
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
		hw.Balance = append(hw.Balance, p)
	}
	fan := machine.Pin(b.Fan)
	fan.Configure(machine.PinConfig{Mode: machine.PinOutput})
	hw.Fan = FanPin{Pin: fan, ActiveLow: b.FanLow}
	hw.Fan.SetFan(false)

	for i, n := range b.Buttons {
		p := machine.Pin(n)
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		hw.Buttons[i] = p
	}

	i2c := machine.I2C0
	if b.I2C.ID == "i2c1" {
		i2c = machine.I2C1
	}
	sda, scl := machine.Pin(b.I2C.SDA), machine.Pin(b.I2C.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := i2c.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: b.I2C.Hz}); err != nil {
		return nil, err
	}
	chips := make([]*ads1115.Device, len(b.ADCAddrs))
	for i, a := range b.ADCAddrs {
		chips[i] = ads1115.New(i2c, ads1115.Config{Address: a})
	}
	hw.ADC = ADC{R: ads1115.NewBank(chips, b.ADCInputs[:])}
	return hw, nil
}

func openPWM(p PWMPin, upper uint16) (*PWMOutput, error) {
	ctrl := pwmGroup(p.Pin)
	if err := ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(p.FreqHz)}); err != nil {
		return nil, err
	}
	ch, err := ctrl.Channel(machine.Pin(p.Pin))
	if err != nil {
		return nil, errcode.Wrap(errcode.Conflict, "hal.Open", "pin is not a pwm output")
	}
	out := NewPWMOutput(ctrl, ch, upper, p.ActiveLow)
	out.SetValue(0)
	return out, nil
}
