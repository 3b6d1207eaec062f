package hal

import (
	"errors"
	"sync"

	"chargecode-go/core/calib"
	"chargecode-go/x/mathx"
)

// PWMController is one PWM slice: its counter top and a compare value per
// channel.
type PWMController interface {
	Top() uint32
	Set(channel uint8, value uint32)
}

// PWMOutput drives one channel of a slice from a raw setpoint in
// [0, Upper]; it implements power.Output.
type PWMOutput struct {
	mu        sync.Mutex
	ctrl      PWMController
	ch        uint8
	upper     uint16
	activeLow bool
	level     uint16
}

// NewPWMOutput scales [0, upper] onto the controller's counter range.
func NewPWMOutput(ctrl PWMController, ch uint8, upper uint16, activeLow bool) *PWMOutput {
	return &PWMOutput{ctrl: ctrl, ch: ch, upper: mathx.Max(upper, 1), activeLow: activeLow}
}

func (p *PWMOutput) SetValue(raw uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw = mathx.Min(raw, p.upper)
	top := p.ctrl.Top()
	hw := uint32(uint64(raw) * uint64(top) / uint64(p.upper))
	if p.activeLow {
		hw = top - hw
	}
	p.ctrl.Set(p.ch, hw)
	p.level = raw
}

// Value is the last raw setpoint applied.
func (p *PWMOutput) Value() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// OutputPin is a digital output.
type OutputPin interface {
	Set(high bool)
}

// InputPin is a digital input.
type InputPin interface {
	Get() bool
}

// BalancePins switch the bleed resistors; they implement
// power.BalancePort. Entry i is cell i.
type BalancePins []OutputPin

func (b BalancePins) SetBalance(mask uint8) {
	for i, p := range b {
		p.Set(mask&(1<<i) != 0)
	}
}

// FanPin implements monitor.Fan.
type FanPin struct {
	Pin       OutputPin
	ActiveLow bool
}

func (f FanPin) SetFan(on bool) { f.Pin.Set(on != f.ActiveLow) }

// ButtonPins are the front-panel switches in key order (inc, dec,
// start, stop), wired active low; they implement keys.Buttons.
type ButtonPins [4]InputPin

func (b ButtonPins) Pressed() uint8 {
	var m uint8
	for i, p := range b {
		if p != nil && !p.Get() {
			m |= 1 << i
		}
	}
	return m
}

// Reader reads a dense channel index, such as an ads1115.Bank.
type Reader interface {
	Read(i int) (uint16, error)
}

var errNotMeasured = errors.New("hal: channel is not measured")

// ADC adapts a Reader to analog.ADC. Setpoint channels are never read.
type ADC struct{ R Reader }

func (a ADC) ReadRaw(ch calib.Channel) (uint16, error) {
	if int(ch) >= calib.NumMeasured {
		return 0, errNotMeasured
	}
	return a.R.Read(int(ch))
}
