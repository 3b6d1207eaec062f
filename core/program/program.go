package program

import (
	"context"

	"chargecode-go/core/settings"
	"chargecode-go/core/strategy"
	"chargecode-go/errcode"
	"chargecode-go/x/mathx"
)

// Program is one entry of the program menu.
type Program uint8

const (
	ChargeLiXX Program = iota
	ChargeLiXXBalance
	Balance
	DischargeLiXX
	FastChargeLiXX
	StorageLiXX
	StorageLiXXBalance
	ChargeNiXX
	DischargeNiXX
	CycleNiXX
	ChargePb
	DischargePb
	EditBattery
	Calibrate

	NumPrograms
)

var programNames = [...]string{
	"charge", "charge_balance", "balance", "discharge", "fast_charge",
	"storage", "storage_balance", "charge_nixx", "discharge_nixx",
	"cycle_nixx", "charge_pb", "discharge_pb", "edit_battery", "calibrate",
}

var _ [NumPrograms]string = programNames

func (p Program) String() string {
	if p < NumPrograms {
		return programNames[p]
	}
	return "unknown"
}

// ParseProgram looks a program up by name.
func ParseProgram(s string) (Program, bool) {
	for i, n := range programNames {
		if n == s {
			return Program(i), true
		}
	}
	return 0, false
}

var (
	menuLiXX = []Program{
		ChargeLiXX, ChargeLiXXBalance, Balance, DischargeLiXX,
		FastChargeLiXX, StorageLiXX, StorageLiXXBalance, EditBattery,
	}
	menuNiXX = []Program{ChargeNiXX, DischargeNiXX, CycleNiXX, EditBattery}
	menuPb   = []Program{ChargePb, DischargePb, EditBattery}
)

// Menu lists the programs offered for a chemistry class.
func Menu(c settings.Class) []Program {
	switch c {
	case settings.ClassLiXX:
		return menuLiXX
	case settings.ClassNiXX:
		return menuNiXX
	case settings.ClassPb:
		return menuPb
	}
	return nil
}

func inMenu(c settings.Class, p Program) bool {
	for _, x := range Menu(c) {
		if x == p {
			return true
		}
	}
	return false
}

// floor keeps a termination current below the current a run starts at.
func floor(end, start int32) int32 {
	return mathx.Min(end, start/2)
}

// deltaIgnoreSamples is the settling window of a NiXX charge.
const deltaIgnoreSamples = 100

// Strategies owns one instance of every strategy for the lifetime of the
// charger; a run reconfigures the one it needs.
type Strategies struct {
	Simple    *strategy.SimpleCharge
	Charge    *strategy.TheveninCharge
	Discharge *strategy.TheveninDischarge
	Delta     *strategy.DeltaCharge
	Storage   *strategy.Storage
	Balance   *strategy.BalanceOnly
	StartInfo *strategy.StartInfo
}

// NewStrategies binds every strategy to the actuators.
func NewStrategies(chg, dis strategy.Actuator, src strategy.Source, bal strategy.Balancer) *Strategies {
	return &Strategies{
		Simple:    strategy.NewSimpleCharge(chg, src, bal),
		Charge:    strategy.NewTheveninCharge(chg, src, bal),
		Discharge: strategy.NewTheveninDischarge(dis, src, bal),
		Delta:     strategy.NewDeltaCharge(chg, src),
		Storage:   strategy.NewStorage(chg, dis, src, bal),
		Balance:   strategy.NewBalanceOnly(bal),
		StartInfo: strategy.NewStartInfo(src),
	}
}

// Arming is the supervisor as the runner sees it.
type Arming interface {
	Supervisor
	Arm(l settings.Limits)
}

// Runner sequences the phases of a program over the control loop.
type Runner struct {
	Loop       *Loop
	Monitor    Arming
	Strategies *Strategies
	Settings   *settings.Settings
}

// Run validates b, shows the start information and, once the operator
// confirms, runs prog to its end. The error carries the fault that ended
// the run, errcode.Stopped when the operator declined to start.
func (r *Runner) Run(ctx context.Context, prog Program, b settings.Battery) (strategy.Status, error) {
	const op = "program.Run"
	if prog == EditBattery || prog == Calibrate {
		return strategy.Error, errcode.Wrap(errcode.Unsupported, op, prog.String()+" is handled by the front end")
	}
	if err := b.Validate(r.Settings); err != nil {
		return strategy.Error, err
	}
	class := b.Chemistry.Class()
	if !inMenu(class, prog) {
		return strategy.Error, errcode.Wrap(errcode.InvalidParams, op, prog.String()+" not offered for "+b.Chemistry.String())
	}

	r.Monitor.Arm(r.Settings.Limits())
	r.Loop.Debug = r.Settings.Debug
	r.Loop.Program = prog.String()
	println("[program] start", prog.String(), b.Chemistry.String())

	info := startInfoScreens
	if class == settings.ClassLiXX {
		info = startInfoBalanceScreens
	}
	switch st := r.Loop.Run(ctx, r.Strategies.StartInfo, info); st {
	case strategy.CompleteAndExit:
	case strategy.Error:
		return st, r.result(st)
	default:
		return st, errcode.Stopped
	}

	st := r.dispatch(ctx, prog, b)
	return st, r.result(st)
}

func (r *Runner) result(st strategy.Status) error {
	if st != strategy.Error {
		return nil
	}
	if f := r.Loop.LastFault(); f.Err() != nil {
		return f.Err()
	}
	return errcode.StrategyFault
}

func (r *Runner) dispatch(ctx context.Context, prog Program, b settings.Battery) strategy.Status {
	s := r.Strategies
	switch prog {
	case ChargeLiXX:
		return r.theveninCharge(ctx, b, false, false)
	case ChargeLiXXBalance:
		return r.theveninCharge(ctx, b, false, true)
	case FastChargeLiXX:
		return r.theveninCharge(ctx, b, true, false)
	case Balance:
		return r.Loop.Run(ctx, s.Balance, balanceScreens)
	case DischargeLiXX, DischargePb:
		return r.discharge(ctx, b, dischargeScreens, false)
	case StorageLiXX:
		return r.storage(ctx, b, false)
	case StorageLiXXBalance:
		return r.storage(ctx, b, true)
	case ChargeNiXX:
		return r.deltaCharge(ctx, b, false)
	case DischargeNiXX:
		return r.discharge(ctx, b, nixxDischargeScreens, false)
	case CycleNiXX:
		if st := r.deltaCharge(ctx, b, true); st != strategy.Complete {
			return st
		}
		if st := r.discharge(ctx, b, nixxDischargeScreens, true); st != strategy.Complete {
			return st
		}
		return r.deltaCharge(ctx, b, false)
	case ChargePb:
		ic := b.ChargeCurrent(r.Settings)
		s.Simple.Configure(strategy.SimpleChargeConfig{
			TargetV:  b.VCharge(),
			Current:  ic,
			Limit:    ic + ic/10,
			Capacity: b.ChargeCapacityLimit(),
		})
		if st := r.Loop.RunPhase(ctx, s.Simple, simpleChargeScreens); st != strategy.Complete {
			return st
		}
		return r.theveninCharge(ctx, b, false, false)
	}
	return strategy.Error
}

func (r *Runner) theveninCharge(ctx context.Context, b settings.Battery, fast, balance bool) strategy.Status {
	ic := b.ChargeCurrent(r.Settings)
	r.Strategies.Charge.Configure(strategy.TheveninConfig{
		TargetV:    b.VCharge(),
		Current:    ic,
		MinCurrent: floor(b.MinIc(fast), ic),
		Capacity:   b.ChargeCapacityLimit(),
		Balance:    balance,
		MaxRth:     b.MaxRth(),
		Overshoot:  b.Overshoot(),
	})
	return r.Loop.Run(ctx, r.Strategies.Charge, theveninScreens)
}

func (r *Runner) discharge(ctx context.Context, b settings.Battery, screens Screens, chained bool) strategy.Status {
	id := b.DischargeCurrent(r.Settings)
	r.Strategies.Discharge.Configure(strategy.TheveninConfig{
		TargetV:    b.VDischarge(),
		Current:    id,
		MinCurrent: floor(b.MinId(), id),
		MaxRth:     b.MaxRth(),
		Overshoot:  b.Overshoot(),
	})
	if chained {
		return r.Loop.RunPhase(ctx, r.Strategies.Discharge, screens)
	}
	return r.Loop.Run(ctx, r.Strategies.Discharge, screens)
}

func (r *Runner) storage(ctx context.Context, b settings.Battery, balance bool) strategy.Status {
	ic, id := b.ChargeCurrent(r.Settings), b.DischargeCurrent(r.Settings)
	r.Strategies.Storage.Configure(strategy.StorageConfig{
		TargetV:   b.VStorage(),
		Ic:        ic,
		Id:        id,
		MinIc:     floor(b.MinIc(false), ic),
		MinId:     floor(b.MinId(), id),
		Balance:   balance,
		MaxRth:    b.MaxRth(),
		Overshoot: b.Overshoot(),
	})
	return r.Loop.Run(ctx, r.Strategies.Storage, storageScreens)
}

func (r *Runner) deltaCharge(ctx context.Context, b settings.Battery, chained bool) strategy.Status {
	c := strategy.DeltaChargeConfig{
		Current:       b.ChargeCurrent(r.Settings),
		DeltaV:        b.DeltaV(),
		MaxV:          b.VCharge(),
		Capacity:      b.ChargeCapacityLimit(),
		IgnoreSamples: deltaIgnoreSamples,
	}
	if r.Settings.ExternT {
		c.MaxTemp = r.Settings.ExternTCO
	}
	r.Strategies.Delta.Configure(c)
	if chained {
		return r.Loop.RunPhase(ctx, r.Strategies.Delta, deltaChargeScreens)
	}
	return r.Loop.Run(ctx, r.Strategies.Delta, deltaChargeScreens)
}
