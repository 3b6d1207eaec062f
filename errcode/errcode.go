package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	Timeout       Code = "timeout"
	Conflict      Code = "conflict"

	// Configuration errors, rejected at commit time.
	InvalidCalibration Code = "invalid_calibration"
	InvalidLimits      Code = "invalid_limits"
	InvalidBattery     Code = "invalid_battery"

	// Sensed faults raised by the monitor.
	OverTemperature      Code = "over_temperature"
	InputVoltageLow      Code = "input_voltage_low"
	OverVoltage          Code = "over_voltage"
	OverCurrentCharge    Code = "over_current_charge"
	OverCurrentDischarge Code = "over_current_discharge"
	OverPowerCharge      Code = "over_power_charge"
	OverPowerDischarge   Code = "over_power_discharge"
	SensorImplausible    Code = "sensor_implausible"

	// Algorithmic faults raised by a strategy.
	StrategyFault Code = "strategy_fault"

	Stopped Code = "stopped"
	Error   Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E for op with a message.
func Wrap(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok && t.Timeout() {
		return Timeout
	}
	return Error
}
