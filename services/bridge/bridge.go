// Package bridge mirrors the charger's bus topics to an MQTT broker and
// forwards remote key presses back onto the bus.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"chargecode-go/bus"
	"chargecode-go/core/keys"
	"chargecode-go/services/config"
	"chargecode-go/types"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start runs the bridge until ctx is cancelled. The broker session is
// supervised here: a failed dial or a lost link is retried with backoff.
func Start(ctx context.Context, conn *bus.Connection, cfg config.MQTTConfig, log logrus.FieldLogger) {
	s := &Service{
		conn:       conn,
		cfg:        cfg,
		log:        log.WithField("service", "bridge"),
		stateTopic: bus.T(types.TopicCharger, types.TopicBridge, types.TopicState),
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Broker client
// -----------------------------------------------------------------------------

// Client is the broker session the bridge drives.
type Client interface {
	Connect(ctx context.Context) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, h func(topic string, payload []byte)) error
	Disconnect()
}

// Dial builds a client for cfg; lost is called when an established
// session drops. Tests replace it.
var Dial = func(cfg config.MQTTConfig, lost func(error)) Client {
	return newPahoClient(cfg, lost)
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	cfg        config.MQTTConfig
	log        logrus.FieldLogger
	stateTopic bus.Topic
}

const (
	minRetry = 250 * time.Millisecond
	maxRetry = 5 * time.Second
)

func (s *Service) run(ctx context.Context) {
	backoff := backoffSeq(minRetry, maxRetry)
	for {
		if ctx.Err() != nil {
			return
		}
		lost := make(chan error, 1)
		cl := Dial(s.cfg, func(err error) {
			select {
			case lost <- err:
			default:
			}
		})

		if err := cl.Connect(ctx); err != nil {
			delay := backoff()
			s.log.WithError(err).WithField("retry", delay).Warn("broker dial failed")
			s.publishState("degraded", "dial_failed_retrying", err, delay)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.WithField("broker", s.cfg.Broker).Info("broker link established")
		s.publishState("up", "link_established", nil, 0)
		backoff = backoffSeq(minRetry, maxRetry)
		err := s.handleLink(ctx, cl, lost)
		cl.Disconnect()
		if err == nil {
			return
		}
		delay := backoff()
		s.log.WithError(err).WithField("retry", delay).Warn("broker link lost")
		s.publishState("degraded", "link_lost_retrying", err, delay)
		if !sleep(ctx, delay) {
			return
		}
	}
}

// handleLink owns one broker session. It returns nil only when ctx ends.
func (s *Service) handleLink(ctx context.Context, cl Client, lost <-chan error) error {
	keyTopic := s.remote(bus.T(types.TopicCharger, types.TopicKey))
	if err := cl.Subscribe(keyTopic, s.cfg.QoS, s.onRemoteKey); err != nil {
		return fmt.Errorf("subscribe %s: %w", keyTopic, err)
	}

	sub := s.conn.Subscribe(bus.T(types.TopicCharger, bus.Multi))
	defer s.conn.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-lost:
			return err
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			if !forwarded(msg.Topic) {
				continue
			}
			if err := s.forward(cl, msg); err != nil {
				return err
			}
		}
	}
}

// forwarded excludes inbound topics so remote keys are not echoed back.
func forwarded(t bus.Topic) bool {
	return len(t) < 2 || t[1] != types.TopicKey
}

func (s *Service) forward(cl Client, msg *bus.Message) error {
	var payload []byte
	if msg.Payload != nil {
		b, err := json.Marshal(msg.Payload)
		if err != nil {
			s.log.WithError(err).WithField("topic", msg.Topic.String()).Debug("payload not encodable")
			return nil
		}
		payload = b
	}
	return cl.Publish(s.remote(msg.Topic), s.cfg.QoS, msg.Retained, payload)
}

func (s *Service) onRemoteKey(topic string, payload []byte) {
	kp, ok := decodeKey(payload)
	if !ok {
		s.log.WithField("topic", topic).Debug("ignoring malformed key")
		return
	}
	s.conn.Publish(s.conn.NewMessage(bus.T(types.TopicCharger, types.TopicKey), kp, false))
}

func (s *Service) remote(t bus.Topic) string { return s.cfg.Prefix + t.String() }

// decodeKey accepts {"key":"start"} or a bare key name.
func decodeKey(p []byte) (types.KeyPress, bool) {
	var kp types.KeyPress
	if err := json.Unmarshal(p, &kp); err != nil {
		kp.Key = strings.TrimSpace(string(p))
	}
	kp.Key = strings.ToLower(kp.Key)
	return kp, keys.Parse(kp.Key) != keys.None
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func (s *Service) publishState(level, status string, err error, retry time.Duration) {
	st := types.LinkState{Level: level, Status: status, Retry: retry.Milliseconds(), TS: time.Now().UnixMilli()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
