package bridge

import (
	"context"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"chargecode-go/bus"
	"chargecode-go/services/config"
	"chargecode-go/types"
)

const opTimeout = 5 * time.Second

var errTimeout = errors.New("mqtt: operation timed out")

type pahoClient struct {
	c paho.Client
}

// newPahoClient leaves reconnection to the service loop, so the paho
// auto-reconnect is off and a lost session surfaces through lost.
func newPahoClient(cfg config.MQTTConfig, lost func(error)) *pahoClient {
	will := cfg.Prefix + bus.T(types.TopicCharger, types.TopicBridge, types.TopicState).String()
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(false).
		SetKeepAlive(30*time.Second).
		SetWill(will, `{"level":"down","status":"connection_lost"}`, cfg.QoS, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) { lost(err) })
	return &pahoClient{c: paho.NewClient(opts)}
}

func (p *pahoClient) Connect(ctx context.Context) error {
	return wait(ctx, p.c.Connect())
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	tok := p.c.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(opTimeout) {
		return errTimeout
	}
	return tok.Error()
}

func (p *pahoClient) Subscribe(topic string, qos byte, h func(string, []byte)) error {
	tok := p.c.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	})
	if !tok.WaitTimeout(opTimeout) {
		return errTimeout
	}
	return tok.Error()
}

func (p *pahoClient) Disconnect() { p.c.Disconnect(250) }

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
