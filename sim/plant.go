package sim

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"chargecode-go/core/calib"
	"chargecode-go/x/mathx"
)

// BleedCurrent is the current (mA) a balance resistor draws from its cell.
const BleedCurrent = 100

// PlantConfig describes the bench around the pack.
type PlantConfig struct {
	Vin      int32 // mV
	Ambient  int32 // cC
	Reversed bool  // pack connected the wrong way round
	Noise    uint16
	// TimeScale speeds the battery up relative to the tick clock.
	TimeScale int
}

// Plant is the board seen from the control core: it answers ADC reads
// from the battery model and takes the PWM, balance and fan outputs.
type Plant struct {
	table *calib.Table
	bat   *Battery
	cfg   PlantConfig

	smps, dis atomic.Uint32 // raw PWM values
	mask      atomic.Uint32
	fan       atomic.Bool
	vin       atomic.Int32
	tintern   atomic.Int32

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlant wires bat behind table.
func NewPlant(table *calib.Table, bat *Battery, cfg PlantConfig) *Plant {
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	p := &Plant{table: table, bat: bat, cfg: cfg, rng: rand.New(rand.NewPCG(1, 2))}
	p.vin.Store(cfg.Vin)
	p.tintern.Store(cfg.Ambient)
	return p
}

// Battery returns the simulated pack.
func (p *Plant) Battery() *Battery { return p.bat }

// SetVin changes the supply voltage.
func (p *Plant) SetVin(mV int32) { p.vin.Store(mV) }

// SetTemperature changes the internal temperature.
func (p *Plant) SetTemperature(cC int32) { p.tintern.Store(cC) }

// FanOn reports the fan output.
func (p *Plant) FanOn() bool { return p.fan.Load() }

// SetFan implements monitor.Fan.
func (p *Plant) SetFan(on bool) { p.fan.Store(on) }

// SetBalance implements power.BalancePort.
func (p *Plant) SetBalance(mask uint8) {
	p.mask.Store(uint32(mask))
	p.bat.SetBleed(mask, BleedCurrent)
}

// Output is one PWM channel of the plant.
type Output struct {
	v *atomic.Uint32
}

func (o Output) SetValue(raw uint16) { o.v.Store(uint32(raw)) }

// SMPS is the charge stage PWM.
func (p *Plant) SMPS() Output { return Output{&p.smps} }

// Discharger is the discharge load PWM.
func (p *Plant) Discharger() Output { return Output{&p.dis} }

// current is the pack current (mA) the outputs drive right now.
func (p *Plant) current() (chg, dis int32) {
	if raw := uint16(p.smps.Load()); raw > 0 {
		chg = mathx.Max(p.table.Calibrate(calib.IsmpsSet, raw), 0)
	}
	if raw := uint16(p.dis.Load()); raw > 0 {
		dis = mathx.Max(p.table.Calibrate(calib.IdischargeSet, raw), 0)
	}
	return chg, dis
}

// step advances the battery by dt times the time scale.
func (p *Plant) step(dt time.Duration) {
	chg, dis := p.current()
	p.bat.SetCurrent(chg - dis)
	p.bat.Step(dt * time.Duration(p.cfg.TimeScale))
}

// Stepper adapts the plant to timer.SlowTicker for a slow period dt.
type Stepper struct {
	p  *Plant
	dt time.Duration
}

func (s Stepper) DoSlowInterrupt() { s.p.step(s.dt) }

// Stepper returns the slow hook for a cascade running every dt. Attach
// it after the power stages.
func (p *Plant) Stepper(dt time.Duration) Stepper { return Stepper{p: p, dt: dt} }

// value is the physical reading of ch.
func (p *Plant) value(ch calib.Channel) int32 {
	chg, dis := p.current()
	p.bat.SetCurrent(chg - dis)
	switch ch {
	case calib.VoutPlus, calib.VoutMux:
		if p.cfg.Reversed {
			return 0
		}
		return p.bat.Voltage()
	case calib.VoutMinus:
		if p.cfg.Reversed {
			return p.bat.Voltage()
		}
		return 0
	case calib.Ismps:
		return chg
	case calib.Idischarge:
		return dis
	case calib.Tintern:
		return p.tintern.Load()
	case calib.Textern:
		return p.cfg.Ambient
	case calib.Vin:
		return p.vin.Load()
	case calib.Vb0:
		return 0
	}
	if ch >= calib.Vb1 && ch <= calib.Vb6 {
		return p.bat.Cell(int(ch - calib.Vb1))
	}
	return 0
}

// ReadRaw implements analog.ADC.
func (p *Plant) ReadRaw(ch calib.Channel) (uint16, error) {
	raw := p.table.Inverse(ch, p.value(ch))
	if p.cfg.Noise == 0 {
		return raw, nil
	}
	p.mu.Lock()
	n := int32(p.rng.IntN(2*int(p.cfg.Noise)+1)) - int32(p.cfg.Noise)
	p.mu.Unlock()
	return uint16(mathx.Clamp(int32(raw)+n, 0, 0xFFFF)), nil
}
