//go:build rp2040 || rp2350

// charger-pico is the firmware image for the RP2040 charger board.
package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"chargecode-go/bus"
	"chargecode-go/core/analog"
	"chargecode-go/core/calib"
	"chargecode-go/core/keys"
	"chargecode-go/core/monitor"
	"chargecode-go/core/power"
	"chargecode-go/core/program"
	"chargecode-go/core/settings"
	"chargecode-go/core/timer"
	"chargecode-go/services/hal"
	"chargecode-go/services/panel"
	"chargecode-go/services/serialout"
	"chargecode-go/services/telemetry"
	"chargecode-go/types"
)

func printTopic(prefix string, t bus.Topic) {
	print(prefix, " ", t.String())
	if len(t) > 1 && t[len(t)-1] == types.TopicState {
		print(" (retained)")
	}
	println()
}

// printMem prints a compact snapshot of runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}

func halt(what string, err error) {
	println("[main]", what+":", err.Error())
	for {
		time.Sleep(time.Second)
	}
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(4)
	diag := b.NewConnection("diag")
	mon := diag.Subscribe(bus.T(types.TopicCharger, bus.Multi))
	go func() {
		for m := range mon.Channel() {
			printTopic("[monitor] <-", m.Topic)
		}
	}()

	hw := settings.IMaxB6
	st := settings.Default(hw)
	table := calib.DefaultIMaxB6()
	if err := st.SetLimitsBasedOnCalibration(hw, &table); err != nil {
		halt("calibration", err)
	}

	board, err := hal.Open(hal.PicoCharger, hw.SMPSUpperBound, hw.DischargerUpperBound)
	if err != nil {
		halt("board", err)
	}
	println("[main] board", hal.PicoCharger.Name, "ready")

	in := analog.New(board.ADC, &table, analog.DefaultConfig())
	tm := timer.New(0, 0)
	smps := power.NewSMPS(board.SMPS, in, &table, hw.SMPSUpperBound, tm.SlowPeriod())
	dis := power.NewDischarger(board.Discharger, in, &table, hw.DischargerUpperBound, tm.SlowPeriod())
	bal := power.NewBalancer(board.Balance, in)
	sup := monitor.New(in, board.Fan)
	tm.AttachFast(in, sup)
	tm.AttachSlow(smps, dis)
	go tm.Run(ctx)

	log := logrus.New()
	log.SetOutput(os.Stdout)

	runner := &program.Runner{
		Loop: &program.Loop{
			Counter:   in,
			Monitor:   sup,
			Keys:      keys.NewDebouncer(board.Buttons),
			Presenter: panel.New(in, tm, st.AudioBeep, log),
			Polarity:  in,
			Conn:      b.NewConnection("program"),
			Clock:     tm,
			Idle:      func() { time.Sleep(time.Millisecond) },
		},
		Monitor:    sup,
		Strategies: program.NewStrategies(smps, dis, in, bal),
		Settings:   &st,
	}

	if st.UART != settings.UARTDisabled {
		port, err := serialout.OpenPort("uart0", st.UARTBaud())
		if err != nil {
			halt("uart", err)
		}
		sampler := &telemetry.Sampler{Meter: in, Charger: smps, Discharger: dis, Balancer: bal}
		go serialout.New(st.UART, sampler, in, port, time.Second, log).Run(ctx)
	}

	battery := settings.DefaultBattery()
	for {
		status, err := runner.Run(ctx, program.ChargeLiXX, battery)
		print("[main] program ended: ", status.String())
		if err != nil {
			print(" (", err.Error(), ")")
		}
		println()
		printMem()
	}
}
