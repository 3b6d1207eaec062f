package keys

import (
	"bufio"
	"io"
	"strings"

	"chargecode-go/core/keys"
)

// LineReader yields one key per line of r, e.g. an operator typing on
// stdin or a scripted sequence. Blank and unknown lines are skipped.
type LineReader struct {
	ch chan keys.Key
}

// NewLineReader starts reading r in the background until EOF.
func NewLineReader(r io.Reader) *LineReader {
	l := &LineReader{ch: make(chan keys.Key, 16)}
	go l.scan(r)
	return l
}

func (l *LineReader) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if k := keys.Parse(strings.ToLower(strings.TrimSpace(sc.Text()))); k != keys.None {
			l.ch <- k
		}
	}
}

// Key never blocks.
func (l *LineReader) Key() keys.Key {
	select {
	case k := <-l.ch:
		return k
	default:
		return keys.None
	}
}
