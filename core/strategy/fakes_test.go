package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/power"
)

type fakeAct struct {
	on     bool
	ons    int
	offs   []power.Reason
	set    []int32
	v, i   int32
	charge int32
}

func (f *fakeAct) PowerOn()                { f.on = true; f.ons++ }
func (f *fakeAct) PowerOff(r power.Reason) { f.on = false; f.offs = append(f.offs, r) }
func (f *fakeAct) SetRealValue(mA int32)   { f.set = append(f.set, mA) }
func (f *fakeAct) Current() int32          { return f.i }
func (f *fakeAct) Vout() int32             { return f.v }
func (f *fakeAct) Charge() int32           { return f.charge }
func (f *fakeAct) IsPowerOn() bool         { return f.on }

func (f *fakeAct) lastSet() int32 {
	if len(f.set) == 0 {
		return -1
	}
	return f.set[len(f.set)-1]
}

type fakeSrc struct {
	v        [calib.NumChannels]int32
	unstable bool
}

func (f *fakeSrc) Read(ch calib.Channel) int32 { return f.v[ch] }
func (f *fakeSrc) IsStable(calib.Channel) bool { return !f.unstable }

type fakeBal struct {
	on      bool
	steps   int
	working bool
	stable  bool
}

func (b *fakeBal) PowerOn()        { b.on = true }
func (b *fakeBal) PowerOff()       { b.on = false }
func (b *fakeBal) Step()           { b.steps++ }
func (b *fakeBal) IsStable() bool  { return b.stable }
func (b *fakeBal) IsWorking() bool { return b.working }
func (b *fakeBal) Cells() int      { return 3 }
