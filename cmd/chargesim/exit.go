package main

import (
	"context"

	"chargecode-go/bus"
	"chargecode-go/types"
)

// exitOnEnd cancels once the run reports its final phase: completed,
// faulted or stopped outside a chained phase.
func exitOnEnd(ctx context.Context, conn *bus.Connection, cancel context.CancelFunc) {
	sub := conn.Subscribe(bus.T(types.TopicCharger, types.TopicState))
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			rs, ok := m.Payload.(types.RunState)
			if ok && rs.Phase == types.PhaseCompleting {
				cancel()
				return
			}
		}
	}
}
