//go:build !linux

package keys

import "errors"

// GPIOButtons is only available on Linux.
type GPIOButtons struct{}

func OpenGPIOButtons(string, Pins) (*GPIOButtons, error) {
	return nil, errors.New("keys: gpio buttons require linux")
}

func (*GPIOButtons) Pressed() uint8 { return 0 }
func (*GPIOButtons) Close() error   { return nil }
