// Package serialout streams line-oriented telemetry to a serial port.
//
// Records are produced on a ticker into a byte ring and drained by a
// separate pump, so a slow or stalled port drops whole records instead of
// blocking the producer.
package serialout

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"chargecode-go/core/settings"
	"chargecode-go/types"
	"chargecode-go/x/ring"
)

// Sampler yields the snapshot to encode.
type Sampler interface {
	Sample() types.Telemetry
}

type Service struct {
	mode     settings.UARTMode
	sampler  Sampler
	raw      RawSource
	w        io.Writer
	interval time.Duration
	log      logrus.FieldLogger

	ring *ring.Ring
	line []byte
}

// New returns a streamer in mode. raw is only used in debug mode and may
// be nil otherwise.
func New(mode settings.UARTMode, s Sampler, raw RawSource, w io.Writer, interval time.Duration, log logrus.FieldLogger) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{
		mode: mode, sampler: s, raw: raw, w: w, interval: interval,
		log:  log.WithField("service", "serialout"),
		ring: ring.New(4096),
		line: make([]byte, 0, 2*LineLen),
	}
}

// Produce encodes one snapshot into the ring. It never blocks.
func (s *Service) Produce() bool {
	if s.mode == settings.UARTDisabled {
		return false
	}
	t := s.sampler.Sample()
	s.line = AppendLine(s.line[:0], &t)
	if s.mode == settings.UARTDebug && s.raw != nil {
		s.line = AppendDebug(s.line, s.raw)
	}
	return s.ring.WriteRecord(s.line)
}

// Dropped counts records lost to a full ring.
func (s *Service) Dropped() uint32 { return s.ring.Dropped() }

// Run produces every interval and pumps to the writer until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if s.mode == settings.UARTDisabled {
		s.log.Debug("uart output disabled")
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.pump(ctx)
	}()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case <-tick.C:
			if !s.Produce() {
				s.log.WithField("dropped", s.Dropped()).Debug("serial record dropped")
			}
		}
	}
}

func (s *Service) pump(ctx context.Context) {
	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ring.Readable():
		}
		for {
			n := s.ring.ReadInto(buf)
			if n == 0 {
				break
			}
			if _, err := s.w.Write(buf[:n]); err != nil {
				s.log.WithError(err).Warn("serial write failed")
				break
			}
		}
	}
}
