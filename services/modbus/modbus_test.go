package modbus

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"

	"chargecode-go/bus"
	"chargecode-go/types"
)

func frame(fn uint8, a, b uint16) *mbserver.TCPFrame {
	d := make([]byte, 4)
	binary.BigEndian.PutUint16(d[0:], a)
	binary.BigEndian.PutUint16(d[2:], b)
	return &mbserver.TCPFrame{Device: 1, Function: fn, Data: d}
}

func newServer(t *testing.T) (*Server, *bus.Connection) {
	t.Helper()
	b := bus.NewBus(8)
	log, _ := test.NewNullLogger()
	return New(b.NewConnection("modbus"), log), b.NewConnection("test")
}

func words(t *testing.T, out []byte) []int16 {
	t.Helper()
	require.Equal(t, int(out[0]), len(out)-1)
	w := make([]int16, out[0]/2)
	for i := range w {
		w[i] = int16(binary.BigEndian.Uint16(out[1+2*i:]))
	}
	return w
}

func TestReadInputRegisters(t *testing.T) {
	s, _ := newServer(t)
	s.Registers().SetTelemetry(types.Telemetry{
		VoutMilliV: 12600, IoutMilliA: -900, VinMilliV: 12000,
		TintCentiC: 3000, TextCentiC: -120, ChargeMilliAh: 45,
		Cells: [types.MaxCells]int32{4200, 4190}, CellCount: 2, Balancing: 1,
	})
	s.Registers().SetState(types.RunState{Phase: types.PhaseCompleting, Error: "over_voltage"})

	out, ex := s.readInput(nil, frame(4, 0, NumInputRegs))
	require.Equal(t, &mbserver.Success, ex)
	assert.Equal(t, []int16{12600, -900, 12000, 3000, -120, 45, 2, 1, 4200, 4190, 0, 0, 0, 0, 2, 1}, words(t, out))

	out, ex = s.readInput(nil, frame(4, RegCell0+1, 1))
	require.Equal(t, &mbserver.Success, ex)
	assert.Equal(t, []int16{4190}, words(t, out))
}

func TestReadOutOfRange(t *testing.T) {
	s, _ := newServer(t)
	for _, f := range []*mbserver.TCPFrame{
		frame(4, 0, NumInputRegs+1),
		frame(4, NumInputRegs, 1),
		frame(4, 0, 0),
		{Function: 4, Data: []byte{0}},
	} {
		_, ex := s.readInput(nil, f)
		assert.NotEqual(t, &mbserver.Success, ex)
	}
}

func TestKeyWritePublishesKeyPress(t *testing.T) {
	s, conn := newServer(t)
	sub := conn.Subscribe(bus.T(types.TopicCharger, types.TopicKey))

	out, ex := s.writeHolding(nil, frame(6, RegKey, 3))
	require.Equal(t, &mbserver.Success, ex)
	assert.Equal(t, []byte{0, 0, 0, 3}, out)

	select {
	case m := <-sub.Channel():
		assert.Equal(t, types.KeyPress{Key: "start"}, m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no key published")
	}

	_, ex = s.writeHolding(nil, frame(6, RegKey, 9))
	assert.Equal(t, &mbserver.IllegalDataValue, ex)
	_, ex = s.writeHolding(nil, frame(6, 5, 1))
	assert.Equal(t, &mbserver.IllegalDataAddress, ex)
}

func TestRunMirrorsBus(t *testing.T) {
	s, conn := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	conn.Publish(conn.NewMessage(bus.T(types.TopicCharger, types.TopicTelemetry), types.Telemetry{VoutMilliV: 8400}, true))
	conn.Publish(conn.NewMessage(bus.T(types.TopicCharger, types.TopicState), types.RunState{Phase: types.PhaseRunning}, true))

	require.Eventually(t, func() bool {
		out, _ := s.Registers().Read(RegVout, 1)
		ph, _ := s.Registers().Read(RegPhase, 1)
		return binary.BigEndian.Uint16(out[1:]) == 8400 && binary.BigEndian.Uint16(ph[1:]) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
