// Package telemetry samples the charger's measurements into
// types.Telemetry snapshots and keeps the latest one retained on the bus.
package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"chargecode-go/bus"
	"chargecode-go/core/calib"
	"chargecode-go/types"
	"chargecode-go/x/timex"
)

var (
	topicTelemetry = bus.T(types.TopicCharger, types.TopicTelemetry)
	topicGet       = bus.T(types.TopicCharger, types.TopicTelemetry, types.TopicGet)
	topicConfig    = bus.T(types.TopicCharger, types.TopicSettings, types.TopicTelemetry)
)

// Meter is the sampling subsystem.
type Meter interface {
	CalculationCount() uint32
	Read(ch calib.Channel) int32
	Vout() int32
}

// Stage is one power path.
type Stage interface {
	IsPowerOn() bool
	Current() int32
	Charge() int32
}

// Cells is the balance port.
type Cells interface {
	Cells() int
	Mask() uint8
}

// Sampler assembles snapshots. Any stage or the balancer may be nil.
type Sampler struct {
	Meter      Meter
	Charger    Stage
	Discharger Stage
	Balancer   Cells
	Now        func() int64 // ms; timex.NowMs when nil
}

// Sample reads one snapshot. Discharge current and charge are negative.
func (s *Sampler) Sample() types.Telemetry {
	t := types.Telemetry{
		VoutMilliV:   s.Meter.Vout(),
		VinMilliV:    s.Meter.Read(calib.Vin),
		TintCentiC:   s.Meter.Read(calib.Tintern),
		TextCentiC:   s.Meter.Read(calib.Textern),
		Calculations: s.Meter.CalculationCount(),
	}
	switch {
	case on(s.Discharger):
		t.IoutMilliA = -s.Discharger.Current()
		t.ChargeMilliAh = -s.Discharger.Charge()
	case s.Charger != nil:
		if on(s.Charger) {
			t.IoutMilliA = s.Charger.Current()
		}
		t.ChargeMilliAh = s.Charger.Charge()
	}
	for i := 0; i < types.MaxCells; i++ {
		t.Cells[i] = s.Meter.Read(calib.Cell(i))
	}
	if s.Balancer != nil {
		t.CellCount = uint8(s.Balancer.Cells())
		t.Balancing = s.Balancer.Mask()
	}
	if s.Now != nil {
		t.TS = s.Now()
	} else {
		t.TS = timex.NowMs()
	}
	return t
}

func on(s Stage) bool { return s != nil && s.IsPowerOn() }

// Service publishes a snapshot every interval and answers requests on
// charger/telemetry/get. The interval follows charger/settings/telemetry.
type Service struct {
	sampler  *Sampler
	interval time.Duration
	log      logrus.FieldLogger
}

func New(s *Sampler, interval time.Duration, log logrus.FieldLogger) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{sampler: s, interval: interval, log: log.WithField("service", "telemetry")}
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)
	getSub := conn.Subscribe(topicGet)
	defer conn.Unsubscribe(getSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("telemetry service stopping")
			return
		case <-tick.C:
			conn.Publish(conn.NewMessage(topicTelemetry, s.sampler.Sample(), true))
		case req := <-getSub.Channel():
			conn.Reply(req, s.sampler.Sample(), false)
		case msg := <-cfgSub.Channel():
			if d, ok := interval(msg.Payload); ok {
				tick.Reset(d)
				s.log.WithField("interval", d).Info("telemetry interval changed")
			}
		}
	}
}

// interval accepts a duration, seconds as a number, a duration string, or
// a map carrying one of those under "interval".
func interval(p any) (time.Duration, bool) {
	var d time.Duration
	switch v := p.(type) {
	case time.Duration:
		d = v
	case float64:
		d = time.Duration(v * float64(time.Second))
	case int:
		d = time.Duration(v) * time.Second
	case string:
		pd, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		d = pd
	case map[string]any:
		return interval(v["interval"])
	}
	return d, d > 0
}
