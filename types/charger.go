package types

// ---- Topic tokens ----

const (
	TopicCharger   = "charger"
	TopicState     = "state"
	TopicTelemetry = "telemetry"
	TopicKey       = "key"
	TopicSettings  = "settings"
	TopicGet       = "get"
	TopicBridge    = "bridge"
	TopicModbus    = "modbus"
)

// ---- Run state (retained) ----

// Retained value: charger/state
type RunState struct {
	Program  string `json:"program"`
	Strategy string `json:"strategy"`
	Phase    Phase  `json:"phase"`
	Status   string `json:"status"`           // strategy status
	Reason   string `json:"reason,omitempty"` // last power-off reason
	Error    string `json:"error,omitempty"`  // errcode.Code of the fault, if any
	TS       int64  `json:"ts_ms"`
}

// Phase is the loop phase reported on the bus.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRunning    Phase = "running"
	PhaseCompleting Phase = "completing"
	PhaseStopped    Phase = "stopped"
)

// ---- Telemetry (retained) ----

// MaxCells mirrors calib.MaxBalanceCells without importing core.
const MaxCells = 6

// Retained value: charger/telemetry
type Telemetry struct {
	VoutMilliV    int32           `json:"vout_mV"`
	IoutMilliA    int32           `json:"iout_mA"`
	VinMilliV     int32           `json:"vin_mV"`
	TintCentiC    int32           `json:"tint_cC"`
	TextCentiC    int32           `json:"text_cC"`
	ChargeMilliAh int32           `json:"charge_mAh"`
	Cells         [MaxCells]int32 `json:"cells_mV"`
	CellCount     uint8           `json:"cell_count"`
	Balancing     uint8           `json:"balancing"` // bit mask
	Calculations  uint32          `json:"calculations"`
	TS            int64           `json:"ts_ms"`
}

// ---- Service state (retained) ----

// Retained value: charger/{bridge,modbus}/state
type LinkState struct {
	Level  string `json:"level"`  // "idle" | "up" | "degraded" | "error"
	Status string `json:"status"` // short machine string
	Error  string `json:"error,omitempty"`
	Retry  int64  `json:"retry_ms,omitempty"` // delay before the next attempt
	TS     int64  `json:"ts_ms"`
}

// ---- Controls ----

// KeyPress is published on charger/key by remote front panels.
type KeyPress struct {
	Key string `json:"key"` // "inc" | "dec" | "start" | "stop"
}
