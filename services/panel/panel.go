// Package panel is the host presenter: it renders the charger's screens
// as text and reports them, with completion and fault signals, through
// the log.
package panel

import (
	"sync"

	"github.com/sirupsen/logrus"

	"chargecode-go/core/calib"
	"chargecode-go/core/monitor"
	"chargecode-go/core/program"
	"chargecode-go/core/strategy"
	"chargecode-go/x/conv"
)

// Meter is the sampling subsystem as the panel reads it.
type Meter interface {
	Read(ch calib.Channel) int32
	Vout() int32
}

// Clock gives the run time shown on the time screen.
type Clock interface {
	Milliseconds() uint32
}

// Panel implements program.Presenter. A screen is logged when its text
// changes, so a steady page does not flood the log.
type Panel struct {
	src   Meter
	clock Clock
	log   logrus.FieldLogger
	beep  bool

	mu       sync.Mutex
	screen   program.Screen
	text     string
	reversed bool
	start    uint32
}

// New returns a panel over src. clock may be nil.
func New(src Meter, clock Clock, beep bool, log logrus.FieldLogger) *Panel {
	return &Panel{src: src, clock: clock, beep: beep, log: log.WithField("service", "panel")}
}

func (p *Panel) PowerOn() {
	if p.clock == nil {
		return
	}
	p.mu.Lock()
	p.start = p.clock.Milliseconds()
	p.mu.Unlock()
}

func (p *Panel) PowerOff() {}

func (p *Panel) Clear() {
	p.mu.Lock()
	p.text, p.reversed = "", false
	p.mu.Unlock()
}

// Text returns the last rendered page.
func (p *Panel) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

func (p *Panel) Display(s program.Screen) {
	text := p.Render(s)
	p.mu.Lock()
	changed := text != p.text || s != p.screen
	p.screen, p.text, p.reversed = s, text, false
	p.mu.Unlock()
	if changed {
		p.log.WithField("screen", s.String()).Info(text)
	}
}

func (p *Panel) ProgramCompleted() {
	p.log.WithField("beep", p.beep).Info("program completed")
}

func (p *Panel) MonitorError(st monitor.Status) {
	p.log.WithField("code", st.String()).Error("monitor fault")
}

func (p *Panel) StrategyError(k strategy.Kind) {
	p.log.WithField("strategy", k.String()).Error("strategy fault")
}

func (p *Panel) ReversedPolarity() {
	p.mu.Lock()
	first := !p.reversed
	p.reversed = true
	p.text = "REVERSE POLARITY"
	p.mu.Unlock()
	if first {
		p.log.Warn("battery connected with reversed polarity")
	}
}

// Render returns the text of page s from the latest readings.
func (p *Panel) Render(s program.Screen) string {
	var buf [22]byte
	out := make([]byte, 0, 40)
	fixed := func(label string, v int32, dec int, unit string) {
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, label...)
		out = append(out, conv.Fixed(buf[:], int64(v), dec)...)
		out = append(out, unit...)
	}
	current := p.src.Read(calib.Ismps)
	if d := p.src.Read(calib.Idischarge); d > current {
		current = -d
	}

	switch s {
	case program.ScreenVinput:
		fixed("Vin=", p.src.Read(calib.Vin), 3, "V")
	case program.ScreenTemperature:
		fixed("Tint=", p.src.Read(calib.Tintern), 2, "C")
		fixed("Text=", p.src.Read(calib.Textern), 2, "C")
	case program.ScreenTime:
		var ms uint32
		if p.clock != nil {
			ms = p.clock.Milliseconds() - p.start
		}
		out = append(out, "time="...)
		out = append(out, conv.Utoa(buf[:], uint64(ms/1000))...)
		out = append(out, 's')
	case program.ScreenBalancer0_2, program.ScreenBalancer0_2Rth:
		p.cells(&out, 0)
	case program.ScreenBalancer3_5, program.ScreenBalancer3_5Rth:
		p.cells(&out, 3)
	case program.ScreenDebugI:
		fixed("Ic=", p.src.Read(calib.Ismps), 0, "mA")
		fixed("Id=", p.src.Read(calib.Idischarge), 0, "mA")
	default:
		fixed("", p.src.Vout(), 3, "V")
		fixed("", current, 3, "A")
	}
	return string(out)
}

func (p *Panel) cells(out *[]byte, first int) {
	var buf [22]byte
	for i := first; i < first+3; i++ {
		if i > first {
			*out = append(*out, ' ')
		}
		*out = append(*out, byte('1'+i), ':')
		*out = append(*out, conv.Fixed(buf[:], int64(p.src.Read(calib.Cell(i))), 3)...)
	}
}
