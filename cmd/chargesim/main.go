// chargesim runs the charger control stack against a simulated pack and
// exposes it through the host services: MQTT bridge, Modbus server,
// serial telemetry and bus keys.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"chargecode-go/bus"
	"chargecode-go/core/keys"
	"chargecode-go/core/program"
	"chargecode-go/core/settings"
	"chargecode-go/errcode"
	"chargecode-go/services/bridge"
	"chargecode-go/services/config"
	hostkeys "chargecode-go/services/keys"
	"chargecode-go/services/modbus"
	"chargecode-go/services/panel"
	"chargecode-go/services/serialout"
	"chargecode-go/services/telemetry"
	"chargecode-go/sim"
)

var version = "<not set>"

type Args struct {
	Config    string  `arg:"-c,--config" help:"configuration file; searched for when empty"`
	Program   string  `arg:"-p,--program" default:"charge" help:"program to run"`
	Chemistry string  `arg:"--chemistry" help:"override the configured chemistry"`
	Cells     uint8   `arg:"--cells" help:"override the configured cell count"`
	SoC       float64 `arg:"--soc" default:"0.5" help:"initial state of charge of the simulated pack"`
	Rint      int32   `arg:"--rint" default:"30" help:"internal resistance per cell, milliohm"`
	TimeScale int     `arg:"--time-scale" default:"60" help:"battery time per tick time"`
	Lockstep  bool    `arg:"--lockstep" help:"advance the clock from the control loop"`
	Start     bool    `arg:"--start" help:"confirm the start screen without operator input"`
	Exit      bool    `arg:"--exit" help:"exit once the program has ended"`
	Stdin     bool    `arg:"--stdin" help:"read keys (inc, dec, start, stop) from stdin"`
	LogLevel  string  `arg:"-l,--log-level" help:"overrides log.level"`
}

func (Args) Version() string { return version }

func procArgs(input []string) (Args, error) {
	var args Args
	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func main() {
	logger := logrus.New()
	if err := run(os.Args[1:], logger); err != nil {
		logger.Fatal(err)
	}
}

func run(input []string, logger *logrus.Logger) error {
	args, err := procArgs(input)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	cfg, err := config.NewLoader(afero.NewOsFs(), settings.IMaxB6, logger).Load(args.Config)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if args.LogLevel != "" {
		level = args.LogLevel
	}
	if lv, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lv)
	} else {
		logger.WithField("level", level).Warn("unknown log level, keeping info")
	}

	battery, err := overrideBattery(cfg, args)
	if err != nil {
		return err
	}
	prog, ok := program.ParseProgram(args.Program)
	if !ok {
		return fmt.Errorf("unknown program %q", args.Program)
	}
	logger.WithFields(logrus.Fields{
		"version": version, "program": prog.String(),
		"chemistry": battery.Chemistry.String(), "cells": battery.Cells,
	}).Info("starting charger simulation")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(32)
	config.Publish(b.NewConnection("config"), cfg)

	rig := sim.New(simConfig(cfg, battery, args), nil, nil, b.NewConnection("program"))
	rig.Loop.Presenter = panel.New(rig.Inputs, rig.Timer, cfg.Settings.AudioBeep, logger)

	busKeys := hostkeys.NewBusReader(b.NewConnection("keys"))
	defer busKeys.Close()
	readers := keys.Multi{busKeys}
	if args.Start {
		readers = append(readers, hostkeys.NewLineReader(strings.NewReader("start\n")))
	}
	if args.Stdin {
		readers = append(readers, hostkeys.NewLineReader(os.Stdin))
	}
	rig.Loop.Keys = readers

	sampler := &telemetry.Sampler{
		Meter:      rig.Inputs,
		Charger:    rig.SMPS,
		Discharger: rig.Discharger,
		Balancer:   rig.Balancer,
	}

	var wg sync.WaitGroup
	spawn := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	spawn(func() { telemetry.New(sampler, cfg.Telemetry.Interval, logger).Run(ctx, b.NewConnection("telemetry")) })

	if cfg.MQTT.Broker != "" {
		spawn(func() { bridge.Start(ctx, b.NewConnection("bridge"), cfg.MQTT, logger) })
	}
	if cfg.Modbus.Listen != "" {
		srv := modbus.New(b.NewConnection("modbus"), logger)
		spawn(func() {
			if err := srv.Run(ctx, cfg.Modbus.Listen); err != nil {
				logger.WithError(err).Error("modbus server stopped")
			}
		})
	}
	if cfg.Settings.UART != settings.UARTDisabled {
		w, closeFn, err := openSerial(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		out := serialout.New(cfg.Settings.UART, sampler, rig.Inputs, w, cfg.Telemetry.Interval, logger)
		spawn(func() { out.Run(ctx) })
	}
	if args.Exit {
		spawn(func() { exitOnEnd(ctx, b.NewConnection("exit"), cancel) })
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	rig.Start(ctx)
	st, runErr := rig.Run(ctx, prog, battery)
	logger.WithFields(logrus.Fields{
		"status": st.String(),
		"charge": rig.SMPS.Charge(),
	}).Info("program ended")

	cancel()
	wg.Wait()
	logger.Info("shutdown complete")
	if errors.Is(runErr, errcode.Stopped) {
		return nil
	}
	return runErr
}

func overrideBattery(cfg *config.Config, args Args) (settings.Battery, error) {
	b := cfg.Battery
	if args.Chemistry != "" {
		c, ok := settings.ParseChemistry(args.Chemistry)
		if !ok {
			return b, fmt.Errorf("unknown chemistry %q", args.Chemistry)
		}
		b.Chemistry = c
	}
	if args.Cells != 0 {
		b.Cells = args.Cells
	}
	return b, b.Validate(&cfg.Settings)
}

func simConfig(cfg *config.Config, b settings.Battery, args Args) sim.Config {
	c := sim.DefaultConfig()
	c.Settings = cfg.Settings
	c.Table = cfg.Table
	c.Lockstep = args.Lockstep
	capacity := b.Capacity
	if capacity <= 0 {
		capacity = 2000
	}
	c.Battery = sim.BatteryConfig{
		Chemistry: b.Chemistry,
		Cells:     int(b.Cells),
		Capacity:  capacity,
		SoC:       args.SoC,
		Rint:      args.Rint,
	}
	c.Plant.TimeScale = args.TimeScale
	if cfg.Settings.AdcNoise {
		c.Plant.Noise = 8
	}
	return c
}

func openSerial(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.Serial.Port == "" {
		return os.Stdout, func() {}, nil
	}
	p, err := serialout.OpenPort(cfg.Serial.Port, cfg.Settings.UARTBaud())
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", cfg.Serial.Port, err)
	}
	return p, func() { p.Close() }, nil
}
