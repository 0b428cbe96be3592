package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nlowe/vents2mqtt/device"
	"github.com/nlowe/vents2mqtt/mapper"
	"github.com/nlowe/vents2mqtt/mqtt"
	"github.com/nlowe/vents2mqtt/register"
)

var (
	power = register.Descriptor{Address: 0x0001, Name: "power", Direction: register.ReadWrite, Kind: register.Boolean}

	fanSpeed = register.Descriptor{
		Address: 0x0002, Name: "fan_speed", Direction: register.ReadWrite, Kind: register.Enumerated,
		Enum: []register.EnumOption{{Label: "off", Code: 0}, {Label: "low", Code: 1}, {Label: "high", Code: 2}},
	}

	supplyTemp = register.Descriptor{
		Address: 0x001e, Name: "supply_temp", Kind: register.Float, Scale: 0.1, Width: 2, Signed: true,
	}
)

type write struct {
	address register.Address
	value   register.Value
}

// fakeTransport is an in-memory device.
type fakeTransport struct {
	mu          sync.Mutex
	values      map[register.Address]register.Value
	readErrs    map[register.Address]error
	unreachable bool
	writeErr    error
	// stuck registers accept writes without changing their value.
	stuck  map[register.Address]bool
	writes []write
	reads  map[register.Address]int

	gate    chan struct{}
	started chan struct{}
}

func newFakeTransport(values map[register.Address]register.Value) *fakeTransport {
	return &fakeTransport{
		values:   values,
		readErrs: map[register.Address]error{},
		stuck:    map[register.Address]bool{},
		reads:    map[register.Address]int{},
	}
}

func (f *fakeTransport) ReadRegister(_ context.Context, d register.Descriptor) (register.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads[d.Address]++
	if f.unreachable {
		return 0, fmt.Errorf("%w: no answer", device.ErrDeviceUnreachable)
	}

	if err, ok := f.readErrs[d.Address]; ok {
		return 0, err
	}

	v, ok := f.values[d.Address]
	if !ok {
		return 0, fmt.Errorf("%w: %s not supported", device.ErrRegisterRead, d.Name)
	}

	return v, nil
}

func (f *fakeTransport) WriteRegister(_ context.Context, d register.Descriptor, v register.Value) error {
	f.mu.Lock()
	f.writes = append(f.writes, write{address: d.Address, value: v})
	gate, started := f.gate, f.started
	f.gate, f.started = nil, nil
	f.mu.Unlock()

	if gate != nil {
		close(started)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}

	if !f.stuck[d.Address] {
		f.values[d.Address] = v
	}

	return nil
}

// blockNextWrite makes the next WriteRegister call wait until release is called. started is closed once that write
// has begun.
func (f *fakeTransport) blockNextWrite() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gate, f.started = make(chan struct{}), make(chan struct{})
	gate := f.gate
	return f.started, func() { close(gate) }
}

func (f *fakeTransport) set(a register.Address, v register.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.readErrs, a)
	f.values[a] = v
}

func (f *fakeTransport) failRead(a register.Address, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readErrs[a] = err
}

func (f *fakeTransport) setUnreachable(unreachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unreachable = unreachable
}

func (f *fakeTransport) recordedWrites() []write {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]write(nil), f.writes...)
}

func (f *fakeTransport) readCount(a register.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reads[a]
}

type message struct {
	topic   string
	payload string
	opts    mqtt.WriteOptions
}

// recordingWriter records every published message. While disconnected it fails every write with
// mqtt.ErrBrokerDisconnected.
type recordingWriter struct {
	mu           sync.Mutex
	messages     []message
	disconnected bool
}

func (w *recordingWriter) WriteTopic(_ context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disconnected {
		return mqtt.ErrBrokerDisconnected
	}

	w.messages = append(w.messages, message{topic: topic, payload: string(value), opts: options})
	return nil
}

// slowWriter delays every publish like a broker that is slow to acknowledge. The delay honours ctx.
type slowWriter struct {
	recordingWriter
	delay time.Duration
}

func (w *slowWriter) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.delay):
	}

	return w.recordingWriter.WriteTopic(ctx, topic, options, value)
}

func (w *recordingWriter) setDisconnected(disconnected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disconnected = disconnected
}

// payloads returns every payload published to topic, in order.
func (w *recordingWriter) payloads(topic string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var result []string
	for _, m := range w.messages {
		if m.topic == topic {
			result = append(result, m.payload)
		}
	}

	return result
}

// withPrefix returns every message whose topic starts with prefix.
func (w *recordingWriter) withPrefix(prefix string) []message {
	w.mu.Lock()
	defer w.mu.Unlock()

	var result []message
	for _, m := range w.messages {
		if strings.HasPrefix(m.topic, prefix) {
			result = append(result, m)
		}
	}

	return result
}

func (w *recordingWriter) all() []message {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]message(nil), w.messages...)
}

func (w *recordingWriter) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.messages = nil
}

// eventLog collects events delivered to an Observer.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) observe(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
}

func (l *eventLog) ofKind(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			result = append(result, ev)
		}
	}

	return result
}

type fixture struct {
	engine    *Engine
	mapper    *mapper.Mapper
	transport *fakeTransport
	writer    *recordingWriter
	events    *eventLog
}

func newFixture(t *testing.T, cfg Config, values map[register.Address]register.Value) *fixture {
	t.Helper()

	f := &fixture{
		mapper:    mapper.New(register.MustNew(power, fanSpeed, supplyTemp), "abc"),
		transport: newFakeTransport(values),
		writer:    &recordingWriter{},
		events:    &eventLog{},
	}

	cfg.Observer = f.events.observe
	f.engine = New(cfg, f.mapper, f.transport, f.writer)
	t.Cleanup(f.engine.Wait)

	return f
}

func (f *fixture) state(d register.Descriptor) []string {
	return f.writer.payloads(f.mapper.StateTopic(d))
}

func (f *fixture) availability(d register.Descriptor) []string {
	return f.writer.payloads(f.mapper.AvailabilityTopic(d))
}

func (f *fixture) command(ctx context.Context, d register.Descriptor, payload string) {
	topic := f.mapper.CommandTopic(d)
	if topic == "" {
		topic = f.mapper.StateTopic(d) + "/set"
	}

	f.engine.CommandHandler(ctx).ServeMQTT(f.writer, topic, []byte(payload))
}
