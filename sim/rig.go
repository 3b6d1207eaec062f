package sim

import (
	"context"
	"time"

	"chargecode-go/bus"
	"chargecode-go/core/analog"
	"chargecode-go/core/calib"
	"chargecode-go/core/keys"
	"chargecode-go/core/monitor"
	"chargecode-go/core/power"
	"chargecode-go/core/program"
	"chargecode-go/core/settings"
	"chargecode-go/core/strategy"
	"chargecode-go/core/timer"
)

// Config assembles a simulated charger.
type Config struct {
	Hardware settings.Hardware
	Settings settings.Settings
	Table    calib.Table
	Analog   analog.Config
	Battery  BatteryConfig
	Plant    PlantConfig

	Period   time.Duration // tick period, timer default when zero
	Prescale uint16

	// Lockstep advances the clock from the control loop: every loop
	// iteration runs exactly one measurement worth of ticks. Runs are
	// then deterministic and as fast as the host allows.
	Lockstep bool
}

// DefaultConfig is an imaxB6 with a half-charged 3S LiPo on the bench.
func DefaultConfig() Config {
	return Config{
		Hardware: settings.IMaxB6,
		Settings: settings.Default(settings.IMaxB6),
		Table:    calib.DefaultIMaxB6(),
		Analog:   analog.DefaultConfig(),
		Battery: BatteryConfig{
			Chemistry: settings.Lipo, Cells: 3, Capacity: 2200, SoC: 0.5, Rint: 30,
		},
		Plant: PlantConfig{Vin: 12000, Ambient: 2500, TimeScale: 1},
	}
}

// Rig is the whole control stack wired to a Plant.
type Rig struct {
	cfg      Config
	settings settings.Settings
	table    calib.Table

	Plant      *Plant
	Inputs     *analog.Inputs
	Timer      *timer.Timer
	SMPS       *power.SMPS
	Discharger *power.Discharger
	Balancer   *power.Balancer
	Monitor    *monitor.Monitor
	Strategies *program.Strategies
	Loop       *program.Loop
	Runner     *program.Runner
}

// New wires the stack. conn may be nil.
func New(cfg Config, k keys.Reader, p program.Presenter, conn *bus.Connection) *Rig {
	r := &Rig{cfg: cfg, settings: cfg.Settings, table: cfg.Table}
	if r.cfg.Plant.TimeScale <= 0 {
		r.cfg.Plant.TimeScale = 1
	}

	r.Plant = NewPlant(&r.table, NewBattery(cfg.Battery), r.cfg.Plant)
	r.Inputs = analog.New(r.Plant, &r.table, cfg.Analog)
	r.Timer = timer.New(cfg.Period, cfg.Prescale)

	// Charge is integrated in battery time, not tick time.
	slow := r.Timer.SlowPeriod() * time.Duration(r.cfg.Plant.TimeScale)
	r.SMPS = power.NewSMPS(r.Plant.SMPS(), r.Inputs, &r.table, cfg.Hardware.SMPSUpperBound, slow)
	r.Discharger = power.NewDischarger(r.Plant.Discharger(), r.Inputs, &r.table, cfg.Hardware.DischargerUpperBound, slow)
	r.Balancer = power.NewBalancer(r.Plant, r.Inputs)
	r.Monitor = monitor.New(r.Inputs, r.Plant)

	r.Timer.AttachFast(r.Inputs, r.Monitor)
	r.Timer.AttachSlow(r.SMPS, r.Discharger, r.Plant.Stepper(r.Timer.SlowPeriod()))

	r.Strategies = program.NewStrategies(r.SMPS, r.Discharger, r.Inputs, r.Balancer)
	r.Loop = &program.Loop{
		Counter:   r.Inputs,
		Monitor:   r.Monitor,
		Keys:      k,
		Presenter: p,
		Polarity:  r.Inputs,
		Conn:      conn,
		Clock:     r.Timer,
	}
	if cfg.Lockstep {
		r.Loop.Idle = r.measure
	} else {
		r.Loop.Idle = func() { time.Sleep(r.Timer.Period()) }
	}
	r.Runner = &program.Runner{
		Loop:       r.Loop,
		Monitor:    r.Monitor,
		Strategies: r.Strategies,
		Settings:   &r.settings,
	}
	return r
}

// Settings returns the committed settings the rig runs with.
func (r *Rig) Settings() *settings.Settings { return &r.settings }

// Table returns the calibration in use.
func (r *Rig) Table() *calib.Table { return &r.table }

// measure runs the ticks of one finalised measurement.
func (r *Rig) measure() {
	n := r.cfg.Analog.Samples
	if n == 0 {
		n = 1
	}
	for i := uint16(0); i < n; i++ {
		r.Timer.Interrupt()
	}
}

// Start fills the stability windows and, unless in lockstep, starts the
// tick source. The tick goroutine ends with ctx.
func (r *Rig) Start(ctx context.Context) {
	w := r.cfg.Analog.Window
	if w <= 0 {
		w = 1
	}
	for i := 0; i < w; i++ {
		r.measure()
	}
	if !r.cfg.Lockstep {
		go r.Timer.Run(ctx)
	}
}

// Run executes one program. Start must have been called.
func (r *Rig) Run(ctx context.Context, prog program.Program, b settings.Battery) (strategy.Status, error) {
	return r.Runner.Run(ctx, prog, b)
}
