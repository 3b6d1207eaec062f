// Package strategy implements the charge, discharge, balance and
// information algorithms.
//
// A strategy advances one step per new measurement and reports a Status.
// It never switches itself off: the control loop maps every terminal
// status to PowerOff with the matching reason.
package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/keys"
	"chargecode-go/core/power"
)

// Status is the lifecycle result of one step.
type Status uint8

const (
	Running Status = iota
	Complete
	CompleteAndExit
	Error
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Complete:
		return "complete"
	case CompleteAndExit:
		return "complete_and_exit"
	case Error:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether the run is over.
func (s Status) Terminal() bool { return s != Running }

// Kind tags the built-in strategies.
type Kind uint8

const (
	KindSimpleCharge Kind = iota
	KindTheveninCharge
	KindTheveninDischarge
	KindDeltaCharge
	KindStorage
	KindBalancer
	KindStartInfo

	NumKinds
)

var kindNames = [...]string{
	"simple_charge", "thevenin_charge", "thevenin_discharge",
	"delta_charge", "storage", "balancer", "start_info",
}

var _ [NumKinds]string = kindNames

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Strategy is the capability set every variant implements.
type Strategy interface {
	Kind() Kind
	PowerOn()
	PowerOff(r power.Reason)
	DoStrategy() Status
	IsStable() bool
}

// KeyObserver is implemented by strategies that react to operator input.
type KeyObserver interface {
	OnKey(k keys.Key)
}

// Actuator is a current-regulated power path (charge stage or discharger).
type Actuator interface {
	PowerOn()
	PowerOff(r power.Reason)
	SetRealValue(mA int32)
	Current() int32
	Vout() int32
	Charge() int32
	IsPowerOn() bool
}

// Balancer drives the balance port.
type Balancer interface {
	PowerOn()
	PowerOff()
	Step()
	IsStable() bool
	IsWorking() bool
	Cells() int
}

// Source is the measurement view strategies use for stability gating.
type Source interface {
	Read(ch calib.Channel) int32
	IsStable(ch calib.Channel) bool
}

func balanceStable(on bool, b Balancer) bool {
	return !on || b == nil || b.IsStable()
}
