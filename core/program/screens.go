package program

// Screen identifies one presentation page. Pages flagged Debug are only
// reachable in debug mode.
type Screen uint8

// Debug marks a debug-only page.
const Debug Screen = 0x80

const (
	ScreenFirst Screen = iota
	ScreenStartInfo
	ScreenCIVLimits
	ScreenR
	ScreenVout
	ScreenVinput
	ScreenTime
	ScreenTemperature
	ScreenDeltaVout
	ScreenDeltaTextern
	ScreenBalancer0_2
	ScreenBalancer3_5
	ScreenBalancer0_2Rth
	ScreenBalancer3_5Rth
	ScreenStorage

	numScreens
)

// Debug pages.
const (
	ScreenDebugDelta           = Debug | (numScreens + iota)
	ScreenDebugI               = Debug | (numScreens + iota)
	ScreenDebugRthVth          = Debug | (numScreens + iota)
	ScreenDebugBalancer0_2RthV = Debug | (numScreens + iota)
	ScreenDebugBalancer3_5RthV = Debug | (numScreens + iota)
	ScreenDebugBalancer0_2RthI = Debug | (numScreens + iota)
	ScreenDebugBalancer3_5RthI = Debug | (numScreens + iota)
)

var screenNames = [...]string{
	"first", "start_info", "civ_limits", "r", "vout", "vinput", "time",
	"temperature", "delta_vout", "delta_textern", "balancer0_2",
	"balancer3_5", "balancer0_2_rth", "balancer3_5_rth", "storage",
}

var _ [numScreens]string = screenNames

var debugNames = [...]string{
	"debug_delta", "debug_i", "debug_rth_vth",
	"debug_balancer0_2_rth_v", "debug_balancer3_5_rth_v",
	"debug_balancer0_2_rth_i", "debug_balancer3_5_rth_i",
}

// IsDebug reports whether the page is debug-only.
func (s Screen) IsDebug() bool { return s&Debug != 0 }

func (s Screen) String() string {
	if s.IsDebug() {
		i := int(s&^Debug) - int(numScreens)
		if i >= 0 && i < len(debugNames) {
			return debugNames[i]
		}
		return "unknown"
	}
	if s < numScreens {
		return screenNames[s]
	}
	return "unknown"
}

// Screens is an ordered page table for one run.
type Screens []Screen

// first is the first page visible with the given debug setting, or -1
// when none is.
func (t Screens) first(debug bool) int {
	for i, s := range t {
		if debug || !s.IsDebug() {
			return i
		}
	}
	return -1
}

// move steps from i by one visible page in direction step (+1/-1). It
// never wraps and stays put when no visible page lies that way.
func (t Screens) move(i, step int, debug bool) int {
	if step == 0 {
		return i
	}
	for j := i + step; j >= 0 && j < len(t); j += step {
		if debug || !t[j].IsDebug() {
			return j
		}
	}
	return i
}

// Page tables per run kind.
var (
	deltaChargeScreens = Screens{
		ScreenFirst, ScreenDeltaVout, ScreenDeltaTextern, ScreenDebugDelta,
		ScreenCIVLimits, ScreenR, ScreenVout, ScreenVinput, ScreenDebugI,
		ScreenTime, ScreenTemperature,
	}
	nixxDischargeScreens = Screens{
		ScreenFirst, ScreenDeltaTextern, ScreenDebugDelta, ScreenCIVLimits,
		ScreenR, ScreenVout, ScreenVinput, ScreenDebugI, ScreenTime,
		ScreenTemperature,
	}
	theveninScreens = Screens{
		ScreenFirst, ScreenDebugRthVth,
		ScreenBalancer0_2, ScreenBalancer3_5,
		ScreenBalancer0_2Rth, ScreenBalancer3_5Rth,
		ScreenDebugBalancer0_2RthV, ScreenDebugBalancer3_5RthV,
		ScreenDebugBalancer0_2RthI, ScreenDebugBalancer3_5RthI,
		ScreenCIVLimits, ScreenR, ScreenVout, ScreenVinput, ScreenDebugI,
		ScreenTime, ScreenTemperature,
	}
	simpleChargeScreens = Screens{
		ScreenFirst, ScreenCIVLimits, ScreenVout, ScreenVinput, ScreenDebugI,
		ScreenTime, ScreenTemperature,
	}
	balanceScreens = Screens{
		ScreenBalancer0_2, ScreenBalancer3_5, ScreenTime, ScreenTemperature,
	}
	dischargeScreens = Screens{
		ScreenFirst, ScreenDebugRthVth,
		ScreenBalancer0_2, ScreenBalancer3_5,
		ScreenBalancer0_2Rth, ScreenBalancer3_5Rth,
		ScreenDebugBalancer0_2RthV, ScreenDebugBalancer3_5RthV,
		ScreenDebugBalancer0_2RthI, ScreenDebugBalancer3_5RthI,
		ScreenR, ScreenVout, ScreenVinput, ScreenDebugI, ScreenTime,
		ScreenTemperature,
	}
	storageScreens = Screens{
		ScreenFirst, ScreenStorage, ScreenDebugRthVth,
		ScreenBalancer0_2, ScreenBalancer3_5,
		ScreenBalancer0_2Rth, ScreenBalancer3_5Rth,
		ScreenDebugBalancer0_2RthV, ScreenDebugBalancer3_5RthV,
		ScreenDebugBalancer0_2RthI, ScreenDebugBalancer3_5RthI,
		ScreenR, ScreenVout, ScreenVinput, ScreenDebugI, ScreenTime,
		ScreenTemperature,
	}
	startInfoBalanceScreens = Screens{
		ScreenStartInfo, ScreenBalancer0_2, ScreenBalancer3_5, ScreenTemperature,
	}
	startInfoScreens = Screens{ScreenStartInfo, ScreenTemperature}
)
