// Package keys provides operator key sources for host builds: keys
// arriving on the bus and front-panel buttons on Linux GPIO lines.
package keys

import (
	"strings"

	"chargecode-go/bus"
	"chargecode-go/core/keys"
	"chargecode-go/types"
)

// BusReader yields keys published on charger/key, one per call.
type BusReader struct {
	sub *bus.Subscription
}

func NewBusReader(conn *bus.Connection) *BusReader {
	return &BusReader{sub: conn.Subscribe(bus.T(types.TopicCharger, types.TopicKey))}
}

// Key never blocks. Unknown payloads read as None.
func (r *BusReader) Key() keys.Key {
	select {
	case m, ok := <-r.sub.Channel():
		if !ok {
			return keys.None
		}
		return decode(m.Payload)
	default:
		return keys.None
	}
}

func (r *BusReader) Close() { r.sub.Unsubscribe() }

func decode(p any) keys.Key {
	switch v := p.(type) {
	case types.KeyPress:
		return keys.Parse(strings.ToLower(v.Key))
	case keys.Key:
		return v
	case string:
		return keys.Parse(strings.ToLower(v))
	}
	return keys.None
}

// Pins are the GPIO line offsets of the four front-panel buttons.
type Pins struct {
	Inc, Dec, Start, Stop int
}

func (p Pins) offsets() []int { return []int{p.Inc, p.Dec, p.Start, p.Stop} }

// mask packs line values, ordered as Pins.offsets, into a Buttons mask.
func mask(vals []int) uint8 {
	var m uint8
	for i, v := range vals {
		if v != 0 {
			m |= keys.Mask(keys.Inc + keys.Key(i))
		}
	}
	return m
}
