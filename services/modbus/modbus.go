// Package modbus exposes the charger over Modbus TCP: telemetry and run
// state as input registers, front-panel keys as a writable holding
// register.
package modbus

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tbrandon/mbserver"

	"chargecode-go/bus"
	"chargecode-go/core/keys"
	"chargecode-go/types"
)

// Input register map (function 4).
const (
	RegVout   = iota // mV
	RegIout          // mA, signed
	RegVin           // mV
	RegTint          // cC, signed
	RegText          // cC, signed
	RegCharge        // mAh, signed
	RegCellCount
	RegBalancing
	RegCell0     // RegCell0..RegCell0+5, mV
	RegPhase     = RegCell0 + types.MaxCells
	RegFault     = RegPhase + 1 // 1 after a fault
	NumInputRegs = RegFault + 1
)

// Holding register map (function 6).
const RegKey = 0 // write keys.Key: 1 inc, 2 dec, 3 start, 4 stop

var phases = map[types.Phase]uint16{
	types.PhaseIdle: 0, types.PhaseRunning: 1, types.PhaseCompleting: 2, types.PhaseStopped: 3,
}

// Registers is the snapshot served to clients.
type Registers struct {
	mu   sync.Mutex
	regs [NumInputRegs]uint16
}

func (r *Registers) SetTelemetry(t types.Telemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[RegVout] = uint16(t.VoutMilliV)
	r.regs[RegIout] = uint16(int16(t.IoutMilliA))
	r.regs[RegVin] = uint16(t.VinMilliV)
	r.regs[RegTint] = uint16(int16(t.TintCentiC))
	r.regs[RegText] = uint16(int16(t.TextCentiC))
	r.regs[RegCharge] = uint16(int16(t.ChargeMilliAh))
	r.regs[RegCellCount] = uint16(t.CellCount)
	r.regs[RegBalancing] = uint16(t.Balancing)
	for i, c := range t.Cells {
		r.regs[RegCell0+i] = uint16(c)
	}
}

func (r *Registers) SetState(s types.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[RegPhase] = phases[s.Phase]
	r.regs[RegFault] = 0
	if s.Error != "" {
		r.regs[RegFault] = 1
	}
}

// Read copies n registers starting at addr, big-endian, prefixed with the
// byte count as function 4 expects.
func (r *Registers) Read(addr, n int) ([]byte, bool) {
	if n < 1 || addr < 0 || addr+n > NumInputRegs {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, 1+2*n)
	out[0] = byte(2 * n)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint16(out[1+2*i:], r.regs[addr+i])
	}
	return out, true
}

// Server serves Registers and forwards key writes to the bus.
type Server struct {
	regs *Registers
	conn *bus.Connection
	log  logrus.FieldLogger
	srv  *mbserver.Server
}

func New(conn *bus.Connection, log logrus.FieldLogger) *Server {
	s := &Server{regs: &Registers{}, conn: conn, log: log.WithField("service", "modbus"), srv: mbserver.NewServer()}
	s.srv.RegisterFunctionHandler(4, s.readInput)
	s.srv.RegisterFunctionHandler(6, s.writeHolding)
	return s
}

// Registers returns the served snapshot.
func (s *Server) Registers() *Registers { return s.regs }

// Run listens on addr and mirrors bus state into the registers until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.srv.ListenTCP(addr); err != nil {
		s.publishState("error", "listen_failed", err)
		return err
	}
	defer s.srv.Close()
	s.log.WithField("addr", addr).Info("modbus server listening")
	s.publishState("up", "listening", nil)

	telSub := s.conn.Subscribe(bus.T(types.TopicCharger, types.TopicTelemetry))
	defer s.conn.Unsubscribe(telSub)
	stSub := s.conn.Subscribe(bus.T(types.TopicCharger, types.TopicState))
	defer s.conn.Unsubscribe(stSub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-telSub.Channel():
			if t, ok := m.Payload.(types.Telemetry); ok {
				s.regs.SetTelemetry(t)
			}
		case m := <-stSub.Channel():
			if st, ok := m.Payload.(types.RunState); ok {
				s.regs.SetState(st)
			}
		}
	}
}

func (s *Server) readInput(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := f.GetData()
	if len(d) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := int(binary.BigEndian.Uint16(d[0:2]))
	n := int(binary.BigEndian.Uint16(d[2:4]))
	out, ok := s.regs.Read(addr, n)
	if !ok {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	return out, &mbserver.Success
}

func (s *Server) writeHolding(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := f.GetData()
	if len(d) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if binary.BigEndian.Uint16(d[0:2]) != RegKey {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	v := binary.BigEndian.Uint16(d[2:4])
	if v == 0 || v > uint16(keys.Stop) {
		return []byte{}, &mbserver.IllegalDataValue
	}
	k := keys.Key(v)
	s.conn.Publish(s.conn.NewMessage(bus.T(types.TopicCharger, types.TopicKey), types.KeyPress{Key: k.String()}, false))
	// function 6 echoes the request
	return d[0:4], &mbserver.Success
}

func (s *Server) publishState(level, status string, err error) {
	st := types.LinkState{Level: level, Status: status}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.T(types.TopicCharger, types.TopicModbus, types.TopicState), st, true))
}
