package monitor

import (
	"testing"

	"chargecode-go/core/calib"
	"chargecode-go/core/settings"
	"chargecode-go/errcode"
)

type fakeSource struct{ v [calib.NumChannels]int32 }

func (f *fakeSource) Read(ch calib.Channel) int32 { return f.v[ch] }

// healthy is a 3S pack charging at 1A on a 12V supply at room temperature.
func healthy() *fakeSource {
	f := &fakeSource{}
	f.v[calib.Tintern] = 2500
	f.v[calib.Textern] = 2500
	f.v[calib.Vin] = 12000
	f.v[calib.VoutPlus] = 11500
	f.v[calib.Ismps] = 1000
	return f
}

func armed(src Source) *Monitor {
	m := New(src, nil)
	s := settings.Default(settings.IMaxB6)
	s.ExternT = true
	m.Arm(s.Limits())
	return m
}

func TestHealthyIsOK(t *testing.T) {
	m := armed(healthy())
	if st := m.Run(); st != OK || st.Err() != nil {
		t.Fatalf("status %v", st)
	}
}

func TestEachCondition(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*fakeSource)
		want Status
	}{
		{"internal temperature", func(f *fakeSource) { f.v[calib.Tintern] = 6100 }, OverTemperature},
		{"external temperature", func(f *fakeSource) { f.v[calib.Textern] = 6500 }, OverTemperature},
		{"input low", func(f *fakeSource) { f.v[calib.Vin] = 9000 }, InputVoltageLow},
		{"over voltage", func(f *fakeSource) { f.v[calib.VoutPlus] = 27500 }, OverVoltage},
		{"charge current", func(f *fakeSource) { f.v[calib.Ismps] = 5200 }, OverCurrentCharge},
		{"discharge current", func(f *fakeSource) { f.v[calib.Idischarge] = 1100 }, OverCurrentDischarge},
		{"charge power", func(f *fakeSource) { f.v[calib.VoutPlus] = 25000; f.v[calib.Ismps] = 4900 }, OverPowerCharge},
		{"discharge power", func(f *fakeSource) { f.v[calib.Ismps] = 0; f.v[calib.Idischarge] = 900 }, OverPowerDischarge},
		{"open thermistor", func(f *fakeSource) { f.v[calib.Textern] = -27000 }, SensorImplausible},
	}
	for _, tc := range cases {
		f := healthy()
		tc.mod(f)
		if got := armed(f).Run(); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestPriorityTemperatureBeforeCurrent(t *testing.T) {
	f := healthy()
	f.v[calib.Tintern] = 8000
	f.v[calib.Ismps] = 9000
	f.v[calib.Vin] = 5000
	m := armed(f)
	for i := 0; i < 10; i++ {
		if got := m.Run(); got != OverTemperature {
			t.Fatalf("got %v want over_temperature", got)
		}
	}
}

func TestExternalSensorIgnoredWhenDisabled(t *testing.T) {
	f := healthy()
	f.v[calib.Textern] = -27000
	m := New(f, nil)
	m.Arm(settings.Default(settings.IMaxB6).Limits())
	if got := m.Run(); got != OK {
		t.Fatalf("got %v", got)
	}
}

func TestStatusCodes(t *testing.T) {
	if OverCurrentCharge.Code() != errcode.OverCurrentCharge || OverCurrentCharge.String() != "over_current_charge" {
		t.Fatal("code mapping")
	}
	if Status(200).Code() != errcode.Error {
		t.Fatal("unknown status must map to error")
	}
}

type fakeFan struct{ sets []bool }

func (f *fakeFan) SetFan(on bool) { f.sets = append(f.sets, on) }

func TestFanHysteresis(t *testing.T) {
	src := healthy()
	fan := &fakeFan{}
	m := New(src, fan)
	m.Arm(settings.Default(settings.IMaxB6).Limits())

	m.DoInterrupt()
	if len(fan.sets) != 0 {
		t.Fatal("fan toggled while cold")
	}
	src.v[calib.Tintern] = 5000
	m.DoInterrupt()
	src.v[calib.Tintern] = 4700
	m.DoInterrupt()
	if len(fan.sets) != 1 || !fan.sets[0] {
		t.Fatalf("fan %v", fan.sets)
	}
	src.v[calib.Tintern] = 4400
	m.DoInterrupt()
	if len(fan.sets) != 2 || fan.sets[1] {
		t.Fatalf("fan %v", fan.sets)
	}
}
