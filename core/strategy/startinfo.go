package strategy

import (
	"chargecode-go/core/calib"
	"chargecode-go/core/keys"
	"chargecode-go/core/power"
)

// StartInfo is the read-only phase shown before a program starts. It
// leaves once the operator confirms with Start.
type StartInfo struct {
	src       Source
	confirmed bool
}

// NewStartInfo returns the information phase.
func NewStartInfo(src Source) *StartInfo { return &StartInfo{src: src} }

func (s *StartInfo) Kind() Kind            { return KindStartInfo }
func (s *StartInfo) PowerOn()              { s.confirmed = false }
func (s *StartInfo) PowerOff(power.Reason) {}

// OnKey records the operator's confirmation.
func (s *StartInfo) OnKey(k keys.Key) {
	if k == keys.Start {
		s.confirmed = true
	}
}

func (s *StartInfo) DoStrategy() Status {
	if s.confirmed {
		return CompleteAndExit
	}
	return Running
}

func (s *StartInfo) IsStable() bool { return s.src.IsStable(calib.VoutPlus) }
