//go:build linux

package keys

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOButtons reads active-low buttons with pull-ups. It implements
// keys.Buttons; wrap it in a keys.Debouncer.
type GPIOButtons struct {
	lines *gpiocdev.Lines
	vals  []int
}

func OpenGPIOButtons(chip string, p Pins) (*GPIOButtons, error) {
	l, err := gpiocdev.RequestLines(chip, p.offsets(),
		gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("chargecode-keys"))
	if err != nil {
		return nil, fmt.Errorf("request button lines on %s: %w", chip, err)
	}
	return &GPIOButtons{lines: l, vals: make([]int, 4)}, nil
}

// Pressed returns 0 when the lines cannot be read.
func (g *GPIOButtons) Pressed() uint8 {
	if err := g.lines.Values(g.vals); err != nil {
		return 0
	}
	return mask(g.vals)
}

func (g *GPIOButtons) Close() error { return g.lines.Close() }
