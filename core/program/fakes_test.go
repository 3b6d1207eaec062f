package program

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/keys"
	"chargecode-go/core/monitor"
	"chargecode-go/core/power"
	"chargecode-go/core/settings"
	"chargecode-go/core/strategy"
)

type counter struct{ n uint32 }

func (c *counter) CalculationCount() uint32 { return c.n }

type fakeMon struct {
	calls     int
	failAfter int // Run returns fault on calls > failAfter; <0 never
	fault     monitor.Status
	armed     *settings.Limits
}

func (m *fakeMon) Run() monitor.Status {
	m.calls++
	if m.failAfter >= 0 && m.calls > m.failAfter {
		return m.fault
	}
	return monitor.OK
}

func (m *fakeMon) Arm(l settings.Limits) { m.armed = &l }

func okMon() *fakeMon { return &fakeMon{failAfter: -1} }

// script yields its keys in order, then Stop forever.
type script struct {
	keys []keys.Key
	read int
}

func (s *script) Key() keys.Key {
	s.read++
	if len(s.keys) == 0 {
		return keys.Stop
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k
}

type presenter struct {
	events    []string
	displayed []Screen
	faults    []monitor.Status
	kinds     []strategy.Kind
}

func (p *presenter) PowerOn()          { p.events = append(p.events, "on") }
func (p *presenter) PowerOff()         { p.events = append(p.events, "off") }
func (p *presenter) Clear()            { p.events = append(p.events, "clear") }
func (p *presenter) Display(s Screen)  { p.displayed = append(p.displayed, s) }
func (p *presenter) ProgramCompleted() { p.events = append(p.events, "completed") }
func (p *presenter) ReversedPolarity() { p.events = append(p.events, "reversed") }
func (p *presenter) MonitorError(st monitor.Status) {
	p.events = append(p.events, "monitor_error")
	p.faults = append(p.faults, st)
}
func (p *presenter) StrategyError(k strategy.Kind) {
	p.events = append(p.events, "strategy_error")
	p.kinds = append(p.kinds, k)
}

func (p *presenter) has(ev string) bool {
	for _, e := range p.events {
		if e == ev {
			return true
		}
	}
	return false
}

// stub is a strategy that replays statuses and counts calls.
type stub struct {
	statuses []strategy.Status
	steps    int
	ons      int
	offs     []power.Reason
	keys     []keys.Key
}

func (s *stub) Kind() strategy.Kind { return strategy.KindSimpleCharge }
func (s *stub) PowerOn()            { s.ons++ }
func (s *stub) PowerOff(r power.Reason) {
	s.offs = append(s.offs, r)
}
func (s *stub) IsStable() bool { return true }
func (s *stub) DoStrategy() strategy.Status {
	s.steps++
	if len(s.statuses) == 0 {
		return strategy.Running
	}
	st := s.statuses[0]
	s.statuses = s.statuses[1:]
	return st
}

type observingStub struct{ stub }

func (s *observingStub) OnKey(k keys.Key) { s.keys = append(s.keys, k) }

type fakeAct struct {
	on   bool
	offs []power.Reason
	sets []int32
	v, i int32
}

func (f *fakeAct) PowerOn()                { f.on = true }
func (f *fakeAct) PowerOff(r power.Reason) { f.on = false; f.offs = append(f.offs, r) }
func (f *fakeAct) SetRealValue(mA int32)   { f.sets = append(f.sets, mA) }
func (f *fakeAct) Current() int32          { return f.i }
func (f *fakeAct) Vout() int32             { return f.v }
func (f *fakeAct) Charge() int32           { return 0 }
func (f *fakeAct) IsPowerOn() bool         { return f.on }

type fakeSrc struct{ v [calib.NumChannels]int32 }

func (f *fakeSrc) Read(ch calib.Channel) int32 { return f.v[ch] }
func (f *fakeSrc) IsStable(calib.Channel) bool { return true }

type fakeBal struct{ on bool }

func (b *fakeBal) PowerOn()        { b.on = true }
func (b *fakeBal) PowerOff()       { b.on = false }
func (b *fakeBal) Step()           {}
func (b *fakeBal) IsStable() bool  { return true }
func (b *fakeBal) IsWorking() bool { return false }
func (b *fakeBal) Cells() int      { return 3 }

type polarity bool

func (p polarity) ReversedPolarity() bool { return bool(p) }
