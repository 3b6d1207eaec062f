package serialout

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargecode-go/core/calib"
	"chargecode-go/core/settings"
	"chargecode-go/types"
)

func snapshot() types.Telemetry {
	return types.Telemetry{
		VoutMilliV: 12600, IoutMilliA: -850, VinMilliV: 12000,
		TintCentiC: 3105, TextCentiC: -50, ChargeMilliAh: 120,
		Cells:     [types.MaxCells]int32{4200, 4201, 4199},
		CellCount: 3, Balancing: 2, Calculations: 17,
	}
}

func TestAppendLine(t *testing.T) {
	tel := snapshot()
	got := string(AppendLine(nil, &tel))
	assert.Equal(t, "$17;12.600;-0.850;12.000;31.05;-0.50;120;3;4.200;4.201;4.199;0.000;0.000;0.000;2\r\n", got)
	assert.LessOrEqual(t, len(got), LineLen)
}

type raws [calib.NumMeasured]uint16

func (r *raws) Raw(ch calib.Channel) uint16 { return r[ch] }

func TestAppendDebug(t *testing.T) {
	r := &raws{}
	for i := range r {
		r[i] = uint16(i * 100)
	}
	got := string(AppendDebug([]byte("x"), r))
	assert.True(t, strings.HasPrefix(got, "x#0;100;200;"))
	assert.True(t, strings.HasSuffix(got, ";1400\r\n"))
	assert.Equal(t, calib.NumMeasured-1, strings.Count(got, ";"))
}

type fixed types.Telemetry

func (f fixed) Sample() types.Telemetry { return types.Telemetry(f) }

func newService(mode settings.UARTMode, w *syncBuf) *Service {
	log, _ := test.NewNullLogger()
	return New(mode, fixed(snapshot()), &raws{}, w, time.Millisecond, log)
}

func TestDisabledProducesNothing(t *testing.T) {
	s := newService(settings.UARTDisabled, &syncBuf{})
	assert.False(t, s.Produce())
	s.Run(context.Background()) // returns at once
}

func TestDebugAppendsRawRecord(t *testing.T) {
	s := newService(settings.UARTDebug, &syncBuf{})
	require.True(t, s.Produce())
	buf := make([]byte, 1024)
	n := s.ring.ReadInto(buf)
	lines := strings.Split(strings.TrimSpace(string(buf[:n])), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, byte('$'), lines[0][0])
	assert.Equal(t, byte('#'), lines[1][0])
}

func TestFullRingDropsWholeRecords(t *testing.T) {
	s := newService(settings.UARTNormal, &syncBuf{})
	n := 0
	for s.Produce() {
		n++
	}
	assert.Greater(t, n, 0)
	assert.EqualValues(t, 1, s.Dropped())

	buf := make([]byte, 8192)
	got := s.ring.ReadInto(buf)
	assert.Equal(t, n, strings.Count(string(buf[:got]), "\r\n"))
}

type syncBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestRunPumpsLines(t *testing.T) {
	w := &syncBuf{}
	s := newService(settings.UARTNormal, w)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return strings.Count(w.String(), "\r\n") >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
	for _, l := range strings.Split(strings.TrimSuffix(w.String(), "\r\n"), "\r\n") {
		assert.True(t, strings.HasPrefix(l, "$17;"), l)
	}
}
