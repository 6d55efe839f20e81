package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"github.com/jgoulah/gridload/internal/config"
	"github.com/jgoulah/gridload/pkg/models"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// pendingToken never completes, like a connect to a broker that does not answer
type pendingToken struct {
	done chan struct{}
}

func (t pendingToken) Wait() bool                     { <-t.done; return true }
func (t pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t pendingToken) Done() <-chan struct{}          { return t.done }
func (t pendingToken) Error() error                   { return nil }

type fakeConnector struct {
	token mqtt.Token
}

func (f fakeConnector) Connect() mqtt.Token { return f.token }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeMQTT struct {
	sent         []published
	err          error
	disconnected bool
}

func (f *fakeMQTT) IsConnected() bool { return !f.disconnected }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.sent = append(f.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func (f *fakeMQTT) Disconnect(uint) { f.disconnected = true }

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func event() models.AlertEvent {
	return models.AlertEvent{
		ID:                "evt-1",
		TransformerID:     "S1F2ATF003",
		Feeder:            "Feeder 2",
		Status:            models.LoadCritical,
		LoadingPercentage: 121,
		Date:              "2024-01-15",
		Hour:              14,
	}
}

func TestMQTTNotify(t *testing.T) {
	client := &fakeMQTT{}
	p := newMQTT(client, "gridload")

	if err := p.Notify(context.Background(), event()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(client.sent))
	}
	msg := client.sent[0]
	if msg.topic != "gridload/S1F2ATF003/alert" || msg.qos != 1 {
		t.Fatalf("unexpected topic/qos: %s %d", msg.topic, msg.qos)
	}

	var decoded models.AlertEvent
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if decoded.Status != models.LoadCritical || decoded.Hour != 14 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}

	if err := p.Close(); err != nil || !client.disconnected {
		t.Fatalf("close should disconnect")
	}
}

func TestMQTTNotifyError(t *testing.T) {
	p := newMQTT(&fakeMQTT{err: errors.New("not connected")}, "gridload")
	if err := p.Notify(context.Background(), event()); err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Fatalf("expected the publish error, got %v", err)
	}
}

func TestNewMQTTRequiresBroker(t *testing.T) {
	if _, err := NewMQTT(context.Background(), config.MQTTConfig{Enabled: true}); err == nil {
		t.Fatalf("expected an error without a broker")
	}
}

func TestKafkaNotify(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{writer: w, topic: "transformer-alerts"}

	if err := k.Notify(context.Background(), event()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "S1F2ATF003" {
		t.Fatalf("messages are keyed by transformer, got %q", w.msgs[0].Key)
	}
	if len(w.msgs[0].Headers) != 1 || string(w.msgs[0].Headers[0].Value) != "Critical" {
		t.Fatalf("unexpected headers: %+v", w.msgs[0].Headers)
	}

	if err := k.Close(); err != nil || !w.closed {
		t.Fatalf("close should close the writer")
	}
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	if _, err := NewKafka(config.KafkaConfig{Enabled: true}); err == nil {
		t.Fatalf("expected an error without brokers")
	}

	k, err := NewKafka(config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("creating producer: %v", err)
	}
	if k.topic != "transformer-alerts" {
		t.Fatalf("expected default topic, got %s", k.topic)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	good := &fakeWriter{}
	bad := &fakeWriter{err: errors.New("broker down")}
	client := &fakeMQTT{}

	m := Multi{
		&Kafka{writer: bad, topic: "a"},
		newMQTT(client, "gridload"),
		&Kafka{writer: good, topic: "b"},
	}

	err := m.Notify(context.Background(), event())
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected the failing notifier's error, got %v", err)
	}
	if len(client.sent) != 1 || len(good.msgs) != 1 {
		t.Fatalf("a failing notifier must not stop the others")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !good.closed || !bad.closed || !client.disconnected {
		t.Fatalf("every notifier should be closed")
	}
}

func TestConnectUnreachableBrokerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := connect(ctx, fakeConnector{token: pendingToken{done: make(chan struct{})}}, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context deadline, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("connect blocked for %s", elapsed)
	}
}

func TestConnectUnreachableBrokerTimesOut(t *testing.T) {
	err := connect(context.Background(), fakeConnector{token: pendingToken{done: make(chan struct{})}}, 20*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected a timeout, got %v", err)
	}
}

func TestConnectReportsBrokerError(t *testing.T) {
	refused := errors.New("connection refused")
	err := connect(context.Background(), fakeConnector{token: doneToken{err: refused}}, time.Second)
	if !errors.Is(err, refused) {
		t.Fatalf("expected the connect error, got %v", err)
	}
	if err := connect(context.Background(), fakeConnector{token: doneToken{}}, time.Second); err != nil {
		t.Fatalf("expected a successful connect, got %v", err)
	}
}

func TestNewMQTTUnreachableBrokerReturns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := NewMQTT(ctx, config.MQTTConfig{Enabled: true, Broker: "127.0.0.1:1"})
		errc <- err
	}()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatalf("expected an error for an unreachable broker")
		}
	case <-time.After(connectTimeout + 5*time.Second):
		t.Fatalf("NewMQTT did not return for an unreachable broker")
	}
}
