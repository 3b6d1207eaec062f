package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargecode-go/bus"
	"chargecode-go/services/config"
	"chargecode-go/types"
)

type pub struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	connectErr error
	lost       func(error)
	pubs       chan pub

	mu       sync.Mutex
	handlers map[string]func(string, []byte)
}

func (f *fakeClient) Connect(context.Context) error { return f.connectErr }

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload []byte) error {
	f.pubs <- pub{topic, retained, payload}
	return nil
}

func (f *fakeClient) Subscribe(topic string, _ byte, h func(string, []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
	return nil
}

func (f *fakeClient) Disconnect() {}

func (f *fakeClient) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.handlers[topic] != nil
	}, time.Second, 5*time.Millisecond)
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(topic, payload)
}

// dialer hands out the clients in order and records each dial.
func dialer(t *testing.T, clients ...*fakeClient) chan *fakeClient {
	t.Helper()
	dialed := make(chan *fakeClient, len(clients))
	prev := Dial
	t.Cleanup(func() { Dial = prev })
	var mu sync.Mutex
	Dial = func(_ config.MQTTConfig, lost func(error)) Client {
		mu.Lock()
		defer mu.Unlock()
		c := clients[0]
		if len(clients) > 1 {
			clients = clients[1:]
		}
		c.lost = lost
		dialed <- c
		return c
	}
	return dialed
}

func newFake() *fakeClient {
	return &fakeClient{pubs: make(chan pub, 64), handlers: map[string]func(string, []byte){}}
}

func start(t *testing.T, cfg config.MQTTConfig) (*bus.Connection, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")
	ctx, cancel := context.WithCancel(context.Background())
	log, _ := test.NewNullLogger()
	done := make(chan struct{})
	go func() {
		Start(ctx, b.NewConnection("bridge"), cfg, log)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return conn, cancel
}

func waitPub(t *testing.T, f *fakeClient, topic string) pub {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case p := <-f.pubs:
			if p.topic == topic {
				return p
			}
		case <-timeout:
			t.Fatalf("no publish on %s", topic)
		}
	}
}

func nextState(t *testing.T, sub *bus.Subscription) types.LinkState {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m.Payload.(types.LinkState)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for bridge state")
	}
	return types.LinkState{}
}

func TestForwardsRetainedStateAsJSON(t *testing.T) {
	f := newFake()
	dialer(t, f)
	conn, _ := start(t, config.MQTTConfig{Prefix: "lab/"})

	st := types.RunState{Program: "charge", Phase: types.PhaseRunning, Status: "running"}
	conn.Publish(conn.NewMessage(bus.T(types.TopicCharger, types.TopicState), st, true))

	p := waitPub(t, f, "lab/charger/state")
	assert.True(t, p.retained)
	var got types.RunState
	require.NoError(t, json.Unmarshal(p.payload, &got))
	assert.Equal(t, st, got)
}

func TestRemoteKeyReachesBus(t *testing.T) {
	f := newFake()
	dialer(t, f)
	conn, _ := start(t, config.MQTTConfig{})

	keySub := conn.Subscribe(bus.T(types.TopicCharger, types.TopicKey))
	f.deliver(t, "charger/key", []byte(`{"key":"START"}`))
	f.deliver(t, "charger/key", []byte("bogus"))
	f.deliver(t, "charger/key", []byte("stop\n"))

	for _, want := range []string{"start", "stop"} {
		select {
		case m := <-keySub.Channel():
			assert.Equal(t, types.KeyPress{Key: want}, m.Payload)
		case <-time.After(time.Second):
			t.Fatalf("no key %s", want)
		}
	}
}

func TestKeysAreNotEchoedToBroker(t *testing.T) {
	f := newFake()
	dialer(t, f)
	conn, _ := start(t, config.MQTTConfig{})

	f.deliver(t, "charger/key", []byte("inc"))
	conn.Publish(conn.NewMessage(bus.T(types.TopicCharger, types.TopicTelemetry), types.Telemetry{VoutMilliV: 1}, false))

	timeout := time.After(time.Second)
	for {
		select {
		case p := <-f.pubs:
			require.NotEqual(t, "charger/key", p.topic)
			if p.topic == "charger/telemetry" {
				return
			}
		case <-timeout:
			t.Fatal("telemetry not forwarded")
		}
	}
}

func TestDialFailureRetriesThenComesUp(t *testing.T) {
	bad := newFake()
	bad.connectErr = errors.New("refused")
	good := newFake()
	dialed := dialer(t, bad, good)
	conn, _ := start(t, config.MQTTConfig{})

	stateSub := conn.Subscribe(bus.T(types.TopicCharger, types.TopicBridge, types.TopicState))
	st := nextState(t, stateSub)
	assert.Equal(t, "degraded", st.Level)
	assert.Equal(t, "dial_failed_retrying", st.Status)
	assert.Equal(t, "refused", st.Error)

	st = nextState(t, stateSub)
	assert.Equal(t, "up", st.Level)
	assert.Len(t, dialed, 2)
}

func TestLostLinkReconnects(t *testing.T) {
	first, second := newFake(), newFake()
	dialed := dialer(t, first, second)
	conn, _ := start(t, config.MQTTConfig{})

	stateSub := conn.Subscribe(bus.T(types.TopicCharger, types.TopicBridge, types.TopicState))
	require.Equal(t, "up", nextState(t, stateSub).Level)
	<-dialed
	first.deliver(t, "charger/key", nil) // link fully established
	first.lost(errors.New("eof"))

	st := nextState(t, stateSub)
	assert.Equal(t, "link_lost_retrying", st.Status)
	assert.Equal(t, "up", nextState(t, stateSub).Level)
	assert.Same(t, second, <-dialed)
}

func TestBackoffRestartsAfterLink(t *testing.T) {
	bad := newFake()
	bad.connectErr = errors.New("refused")
	first, second := newFake(), newFake()
	dialer(t, bad, bad, first, second)
	conn, _ := start(t, config.MQTTConfig{})

	stateSub := conn.Subscribe(bus.T(types.TopicCharger, types.TopicBridge, types.TopicState))
	assert.Equal(t, minRetry.Milliseconds(), nextState(t, stateSub).Retry)
	assert.Equal(t, 2*minRetry.Milliseconds(), nextState(t, stateSub).Retry)
	require.Equal(t, "up", nextState(t, stateSub).Level)

	first.deliver(t, "charger/key", nil)
	first.lost(errors.New("eof"))
	st := nextState(t, stateSub)
	assert.Equal(t, "link_lost_retrying", st.Status)
	assert.Equal(t, minRetry.Milliseconds(), st.Retry)
	assert.Equal(t, "up", nextState(t, stateSub).Level)
}

func TestBackoffSeqDoublesToCap(t *testing.T) {
	next := backoffSeq(time.Second, 3*time.Second)
	got := []time.Duration{next(), next(), next(), next()}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, got)
}

func TestDecodeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"key":"dec"}`, "dec", true},
		{"Inc", "inc", true},
		{`{"key":"reboot"}`, "reboot", false},
		{"", "", false},
	}
	for _, tc := range cases {
		kp, ok := decodeKey([]byte(tc.in))
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, kp.Key, tc.in)
	}
}
