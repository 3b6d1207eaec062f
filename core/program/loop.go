// Package program runs charge programs: the per-run control loop that
// couples one strategy with the safety supervisor, operator input and
// presentation, and the program catalogue that sequences strategies.
package program

import (
	"context"

	"chargecode-go/bus"
	"chargecode-go/core/keys"
	"chargecode-go/core/monitor"
	"chargecode-go/core/power"
	"chargecode-go/core/strategy"
	"chargecode-go/types"
)

// Presenter is the screen and buzzer. It decides how a signal is
// rendered; the loop only decides which one to raise.
type Presenter interface {
	PowerOn()
	PowerOff()
	Clear()
	Display(s Screen)
	ProgramCompleted()
	MonitorError(st monitor.Status)
	StrategyError(k strategy.Kind)
	ReversedPolarity()
}

// Counter exposes the sampling subsystem's new-data counter.
type Counter interface {
	CalculationCount() uint32
}

// Supervisor is the safety check run once per iteration.
type Supervisor interface {
	Run() monitor.Status
}

// PolarityChecker reports a reversed battery connection.
type PolarityChecker interface {
	ReversedPolarity() bool
}

// Clock timestamps bus events.
type Clock interface {
	Milliseconds() uint32
}

// Loop is the per-run orchestrator. Fields other than Counter, Monitor,
// Keys and Presenter are optional.
type Loop struct {
	Counter   Counter
	Monitor   Supervisor
	Keys      keys.Reader
	Presenter Presenter
	Polarity  PolarityChecker
	Debug     bool

	// Conn, when set, receives the retained run state on every phase
	// change.
	Conn  *bus.Connection
	Clock Clock
	// Idle runs once per iteration, after the key has been read.
	Idle func()

	// Program names the run on the bus.
	Program string

	lastFault monitor.Status
}

// LastFault is the monitor status that ended the previous run, OK if none.
func (l *Loop) LastFault() monitor.Status { return l.lastFault }

// Run drives s until the operator stops it, ctx is cancelled or the
// strategy reports CompleteAndExit. The strategy is always powered off on
// return. The result is the last strategy status.
func (l *Loop) Run(ctx context.Context, s strategy.Strategy, screens Screens) strategy.Status {
	return l.run(ctx, s, screens, false)
}

// RunPhase is Run for a step of a multi-phase program: Complete also
// returns at once, without the completion presentation, so the next
// phase can start.
func (l *Loop) RunPhase(ctx context.Context, s strategy.Strategy, screens Screens) strategy.Status {
	return l.run(ctx, s, screens, true)
}

func (l *Loop) run(ctx context.Context, s strategy.Strategy, screens Screens, chained bool) strategy.Status {
	l.lastFault = monitor.OK
	status := strategy.Running
	running := true
	seen := l.Counter.CalculationCount()
	obs, _ := s.(strategy.KeyObserver)

	s.PowerOn()
	l.Presenter.PowerOn()
	l.Presenter.Clear()
	l.publish(s, types.PhaseRunning, status, power.ReasonNone)

	screen := screens.first(l.Debug)
	for {
		if screen >= 0 {
			if l.Polarity != nil && l.Polarity.ReversedPolarity() {
				l.Presenter.ReversedPolarity()
			} else {
				l.Presenter.Display(screens[screen])
			}
		}

		k := l.Keys.Key()
		if ctx.Err() != nil {
			k = keys.Stop
		}
		switch k {
		case keys.Inc:
			screen = screens.move(screen, 1, l.Debug)
		case keys.Dec:
			screen = screens.move(screen, -1, l.Debug)
		}
		if obs != nil && k != keys.None {
			obs.OnKey(k)
		}
		if l.Idle != nil {
			l.Idle()
		}

		if running {
			if st := l.Monitor.Run(); st != monitor.OK {
				l.Presenter.PowerOff()
				s.PowerOff(power.ReasonError)
				l.Presenter.MonitorError(st)
				println("[program] monitor fault:", st.String())
				l.lastFault = st
				running = false
				status = strategy.Error
				l.publishFault(s, st.String())
			} else if c := l.Counter.CalculationCount(); c != seen {
				seen = c
				status = s.DoStrategy()
				switch status {
				case strategy.Running:
				case strategy.CompleteAndExit:
					l.Presenter.PowerOff()
					s.PowerOff(power.ReasonChargingComplete)
					l.publish(s, types.PhaseStopped, status, power.ReasonChargingComplete)
					return status
				case strategy.Complete:
					l.Presenter.PowerOff()
					s.PowerOff(power.ReasonChargingComplete)
					if chained {
						l.publish(s, types.PhaseStopped, status, power.ReasonChargingComplete)
						return status
					}
					l.Presenter.ProgramCompleted()
					running = false
					l.publish(s, types.PhaseCompleting, status, power.ReasonChargingComplete)
				default:
					l.Presenter.PowerOff()
					s.PowerOff(power.ReasonError)
					l.Presenter.StrategyError(s.Kind())
					println("[program] strategy fault:", s.Kind().String())
					running = false
					l.publishFault(s, "strategy_fault")
				}
			}
		}

		if k == keys.Stop {
			break
		}
	}

	reason := power.ReasonOperatorStop
	if !running {
		reason = power.ReasonNone
	}
	l.Presenter.PowerOff()
	s.PowerOff(reason)
	l.publish(s, types.PhaseStopped, status, reason)
	return status
}

func (l *Loop) publish(s strategy.Strategy, ph types.Phase, st strategy.Status, r power.Reason) {
	if l.Conn == nil {
		return
	}
	l.send(types.RunState{
		Program:  l.Program,
		Strategy: s.Kind().String(),
		Phase:    ph,
		Status:   st.String(),
		Reason:   reasonName(r),
	})
}

func (l *Loop) publishFault(s strategy.Strategy, code string) {
	if l.Conn == nil {
		return
	}
	l.send(types.RunState{
		Program:  l.Program,
		Strategy: s.Kind().String(),
		Phase:    types.PhaseCompleting,
		Status:   strategy.Error.String(),
		Reason:   power.ReasonError.String(),
		Error:    code,
	})
}

func (l *Loop) send(rs types.RunState) {
	if l.Clock != nil {
		rs.TS = int64(l.Clock.Milliseconds())
	}
	l.Conn.Publish(l.Conn.NewMessage(bus.T(types.TopicCharger, types.TopicState), rs, true))
}

func reasonName(r power.Reason) string {
	if r == power.ReasonNone {
		return ""
	}
	return r.String()
}
