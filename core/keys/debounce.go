package keys

// Buttons samples the raw switch state; bit k-1 is set while key k is down.
type Buttons interface {
	Pressed() uint8
}

// Debouncer turns raw switch samples into key events. It is sampled once
// per Key call, so its timing is in calls.
type Debouncer struct {
	buttons Buttons

	// Stable is how many identical samples make a change real.
	Stable int
	// RepeatAfter and RepeatEvery auto-repeat a held Inc or Dec; zero
	// RepeatEvery disables repeat.
	RepeatAfter int
	RepeatEvery int

	state uint8
	cand  uint8
	n     int
	held  int
}

func NewDebouncer(b Buttons) *Debouncer {
	return &Debouncer{buttons: b, Stable: 3, RepeatAfter: 50, RepeatEvery: 10}
}

// Key returns a key on the press edge, or a repeat of a held Inc/Dec.
func (d *Debouncer) Key() Key {
	raw := d.buttons.Pressed()
	if raw != d.cand {
		d.cand, d.n = raw, 1
	} else if d.n < d.Stable {
		d.n++
	}
	if d.n >= d.Stable && d.cand != d.state {
		pressed := d.cand &^ d.state
		d.state, d.held = d.cand, 0
		return lowest(pressed)
	}
	if d.state == 0 || d.RepeatEvery <= 0 {
		return None
	}
	d.held++
	k := lowest(d.state)
	if (k == Inc || k == Dec) && d.held >= d.RepeatAfter && (d.held-d.RepeatAfter)%d.RepeatEvery == 0 {
		return k
	}
	return None
}

func lowest(mask uint8) Key {
	for k := Inc; k <= Stop; k++ {
		if mask&(1<<(k-1)) != 0 {
			return k
		}
	}
	return None
}

// Mask is the Buttons bit of k.
func Mask(k Key) uint8 {
	if k == None || k > Stop {
		return 0
	}
	return 1 << (k - 1)
}

// Multi reads from several readers, first non-None wins.
type Multi []Reader

func (m Multi) Key() Key {
	for _, r := range m {
		if k := r.Key(); k != None {
			return k
		}
	}
	return None
}
