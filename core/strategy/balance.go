package strategy

import "chargecode-go/core/power"

// BalanceOnly manages the balance port without driving the regulator.
// It is open-ended.
type BalanceOnly struct {
	bal Balancer
}

// NewBalanceOnly binds the strategy to the balance port.
func NewBalanceOnly(bal Balancer) *BalanceOnly { return &BalanceOnly{bal: bal} }

func (s *BalanceOnly) Kind() Kind            { return KindBalancer }
func (s *BalanceOnly) PowerOn()              { s.bal.PowerOn() }
func (s *BalanceOnly) PowerOff(power.Reason) { s.bal.PowerOff() }
func (s *BalanceOnly) IsStable() bool        { return s.bal.IsStable() }

func (s *BalanceOnly) DoStrategy() Status {
	s.bal.Step()
	return Running
}
