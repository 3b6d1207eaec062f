// Package keys defines the closed set of operator inputs the control loop
// understands.
package keys

// Key is one debounced key event.
type Key uint8

const (
	None Key = iota
	Inc
	Dec
	Start
	Stop
)

func (k Key) String() string {
	switch k {
	case Inc:
		return "inc"
	case Dec:
		return "dec"
	case Start:
		return "start"
	case Stop:
		return "stop"
	}
	return "none"
}

// Parse maps a key name to a Key; unknown names are None.
func Parse(s string) Key {
	for k := Inc; k <= Stop; k++ {
		if k.String() == s {
			return k
		}
	}
	return None
}

// Reader yields at most one key per call and never blocks for long.
type Reader interface {
	Key() Key
}
