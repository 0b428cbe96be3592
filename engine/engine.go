// Package engine keeps the device registers and the broker's retained state topics in sync. It samples the catalog on
// a fixed period, publishes only what changed, applies inbound commands with confirmation and bounded retries, and
// republishes everything when a new broker connection epoch starts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nlowe/vents2mqtt/device"
	"github.com/nlowe/vents2mqtt/hass"
	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/mapper"
	"github.com/nlowe/vents2mqtt/mqtt"
	"github.com/nlowe/vents2mqtt/register"
	"github.com/nlowe/vents2mqtt/sampler"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultWriteAttempts   = 3
	DefaultWriteRetryDelay = 500 * time.Millisecond
)

// Config tunes an Engine. Zero values select the defaults.
type Config struct {
	// PollInterval is the period of the sample cycle. Publishing runs apart from sampling, so a slow broker does not
	// stretch it.
	PollInterval time.Duration

	// WriteAttempts is the total number of times a command is written before it is given up.
	WriteAttempts int

	// WriteRetryDelay is the fixed pause between two attempts of the same command.
	WriteRetryDelay time.Duration

	// QoS is used for state, availability and discovery messages, which are always retained.
	QoS mqtt.QualityOfService

	// Observer, if set, receives every diagnostic event.
	Observer Observer
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.WriteAttempts <= 0 {
		c.WriteAttempts = DefaultWriteAttempts
	}

	if c.WriteRetryDelay < 0 {
		c.WriteRetryDelay = 0
	}

	return c
}

// published is the last state the engine put on the broker for one register. Entries from an older connection epoch
// are treated as never published.
type published struct {
	set   bool
	epoch uint64
	known bool
	value register.Value
}

// slot serializes everything that touches one register: publishing its state and applying commands to it.
type slot struct {
	mu   sync.Mutex
	last published
}

// ErrClosed is reported for commands that arrive after the engine started shutting down.
var ErrClosed = errors.New("engine is shutting down")

// Engine is the single owner of the register snapshot, the published-state ledger and the pending writes.
type Engine struct {
	cfg Config

	catalog   *register.Catalog
	mapper    *mapper.Mapper
	sampler   *sampler.Sampler
	transport device.Transport
	writer    mqtt.Writer
	publisher *Publisher

	// bridge is the retained availability of the bridge itself, mirrored by the session's Last Will.
	bridge *mqtt.Value[hass.Availability]

	slots map[register.Address]*slot

	// sampleMu serializes sample cycles. publishMu serializes publish passes, epoch handling and rediscovery. Sampling
	// never waits on publishMu, and publishMu is always taken before sampleMu.
	sampleMu  sync.Mutex
	publishMu sync.Mutex

	// dirty wakes the publish loop. It buffers a single signal so publish passes coalesce onto the latest snapshot.
	dirty chan struct{}

	// mu guards snapshot, pending, generation, seq and closing.
	mu         sync.Mutex
	snapshot   register.Snapshot
	pending    map[register.Address]*PendingWrite
	generation map[register.Address]uint64
	seq        uint64
	closing    bool

	epoch atomic.Uint64

	commands sync.WaitGroup
	now      func() time.Time

	log *slog.Logger
}

// New wires an Engine. The mapper's catalog defines the registers that are synchronized.
func New(cfg Config, m *mapper.Mapper, transport device.Transport, w mqtt.Writer) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:        cfg,
		catalog:    m.Catalog(),
		mapper:     m,
		sampler:    sampler.New(transport),
		transport:  transport,
		writer:     w,
		publisher:  NewPublisher(m, w, cfg.QoS),
		bridge:     mqtt.NewValueWithOptions(m.BridgeAvailabilityTopic(), hass.AvailabilityMarshaler, mqtt.Retained(cfg.QoS)),
		slots:      make(map[register.Address]*slot, m.Catalog().Len()),
		dirty:      make(chan struct{}, 1),
		snapshot:   register.NewSnapshot(time.Time{}),
		pending:    map[register.Address]*PendingWrite{},
		generation: map[register.Address]uint64{},
		now:        time.Now,
		log:        ventslog.ForComponent("engine"),
	}

	for _, d := range e.catalog.All() {
		e.slots[d.Address] = &slot{}
	}

	return e
}

// Snapshot returns a copy of the latest known register values.
func (e *Engine) Snapshot() register.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshot.Clone()
}

// Run samples the device every Config.PollInterval until ctx is canceled. The first cycle starts immediately. Sampling
// and publishing run on separate goroutines: a slow or impaired broker delays publishes but never the next sample, and
// the publish loop always works from the latest snapshot. Run stops accepting commands and waits for in-flight ones
// before returning ctx's error.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	publishing := make(chan struct{})
	go func() {
		defer close(publishing)
		e.publishLoop(ctx)
	}()

	e.log.With(slog.Duration("interval", e.cfg.PollInterval)).Info("Starting sync engine")
	for {
		if err := e.Sample(ctx); err != nil && ctx.Err() == nil && !device.Unreachable(err) {
			e.log.With(ventslog.Error(err)).Warn("Sample cycle failed")
		}

		select {
		case <-ctx.Done():
			<-publishing
			e.drain()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.dirty:
			e.publishMu.Lock()
			e.publishAll(ctx, false)
			e.publishMu.Unlock()
		}
	}
}

// Wait blocks until every command accepted so far has been confirmed, reverted or superseded. It must not race command
// delivery; use Close to shut down.
func (e *Engine) Wait() {
	e.commands.Wait()
}

// track registers a command goroutine. It reports false once the engine is shutting down so that nothing is added to
// the command group while drain waits on it.
func (e *Engine) track() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing {
		return false
	}

	e.commands.Add(1)
	return true
}

// drain stops accepting commands and waits for the ones in flight.
func (e *Engine) drain() {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	if pending := e.Pending(); len(pending) > 0 {
		e.log.With(slog.Int("pending", len(pending))).Info("Waiting for in-flight commands")
	}

	e.commands.Wait()
}

// HandleEpoch is an mqtt.EpochHandler. It announces the bridge, publishes every discovery record once and then runs a
// forced cycle that republishes every register, changed or not.
func (e *Engine) HandleEpoch(ctx context.Context, epoch mqtt.Epoch) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	if current := e.epoch.Load(); epoch.Sequence < current {
		e.log.With(slog.Any("epoch", epoch)).Debug("Ignoring stale connection epoch")
		return
	}

	e.epoch.Store(epoch.Sequence)
	e.log.With(slog.Any("epoch", epoch)).Info("New broker connection, republishing everything")

	if err := mqtt.Error(e.bridge.Write(ctx, e.writer, "", hass.Available)); err != nil {
		e.emit(Event{Kind: EventPublishFailed, Err: fmt.Errorf("publish bridge availability: %w", err)})
	}

	if err := e.publisher.PublishAll(ctx); err != nil {
		e.emit(Event{Kind: EventDiscoveryFailed, Err: err})
	}

	if err := e.sample(ctx); err != nil && ctx.Err() == nil && !device.Unreachable(err) {
		e.log.With(ventslog.Error(err)).Warn("Forced sample cycle failed")
	}

	if ctx.Err() == nil {
		e.publishAll(ctx, true)
	}
}

// Rediscover publishes every discovery record again, for when Home Assistant restarts without the bridge reconnecting.
func (e *Engine) Rediscover(ctx context.Context) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	err := e.publisher.PublishAll(ctx)
	if err != nil {
		e.emit(Event{Kind: EventDiscoveryFailed, Err: err})
	}

	return err
}

// Close stops accepting commands, waits for in-flight ones and marks the bridge offline. The MQTT session's Last Will
// covers the case where Close is never called.
func (e *Engine) Close(ctx context.Context) error {
	e.drain()
	return mqtt.Error(e.bridge.Write(ctx, e.writer, "", hass.Unavailable))
}

// Cycle samples the catalog and publishes what changed before returning. When force is set, every register is published
// regardless of the ledger, including "offline" markers for registers that are unknown.
func (e *Engine) Cycle(ctx context.Context, force bool) error {
	err := e.sample(ctx)
	if ctx.Err() != nil {
		return err
	}

	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.publishAll(ctx, force)
	return err
}

// Sample reads the catalog once, folds the result into the snapshot and wakes the publish loop. It never waits for a
// publish.
func (e *Engine) Sample(ctx context.Context) error {
	err := e.sample(ctx)
	if ctx.Err() == nil {
		select {
		case e.dirty <- struct{}{}:
		default:
		}
	}

	return err
}

func (e *Engine) sample(ctx context.Context) error {
	e.sampleMu.Lock()
	defer e.sampleMu.Unlock()

	generations := e.generations()

	result, err := e.sampler.SampleFiltered(ctx, e.catalog, func(d register.Descriptor) bool {
		return !e.isPending(d.Address)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}

		if device.Unreachable(err) {
			e.emit(Event{Kind: EventDeviceUnreachable, Err: err})
			e.fold(register.NewSnapshot(e.now()), generations)
		}

		return err
	}

	for _, f := range result.Failures {
		e.emit(Event{Kind: EventRegisterReadFailed, Register: f.Descriptor.Name, Err: f.Err})
	}

	e.fold(result.Snapshot, generations)
	return nil
}

// fold records sampled in the engine snapshot. Registers with a pending write, and registers a command touched after
// the sample started, keep their current entry.
func (e *Engine) fold(sampled register.Snapshot, generations map[register.Address]uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range e.catalog.All() {
		if e.isPendingLocked(d.Address) || e.generation[d.Address] != generations[d.Address] {
			continue
		}

		if r, ok := sampled.Get(d.Address); ok {
			e.snapshot.Set(d.Address, r)
		} else {
			e.snapshot.Forget(d.Address)
		}
	}

	e.snapshot.SampledAt = sampled.SampledAt
}

// publishAll brings the broker in line with the snapshot register by register. The caller must hold publishMu.
// Registers locked by a command are skipped; the command publishes their confirmed state itself. Registers with a
// pending write are only published when force is set.
func (e *Engine) publishAll(ctx context.Context, force bool) {
	var errs []error

	for _, d := range e.catalog.All() {
		if ctx.Err() != nil {
			break
		}

		s := e.slots[d.Address]
		if !s.mu.TryLock() {
			continue
		}

		e.mu.Lock()
		pending := e.isPendingLocked(d.Address)
		current, known := e.snapshot.Get(d.Address)
		e.mu.Unlock()

		if !pending || force {
			if err := e.publish(ctx, s, d, current.Value, known, force); err != nil {
				errs = append(errs, err)
			}
		}

		s.mu.Unlock()
	}

	if len(errs) > 0 {
		e.emit(Event{Kind: EventPublishFailed, Err: errors.Join(errs...)})
	}
}

// publish brings the broker in line with one register. The caller must hold s.mu. Unchanged values and
// unknown-to-unknown transitions publish nothing unless force is set. A register becoming unknown publishes "offline" on
// its availability topic; becoming known again publishes "online" followed by the value. The ledger only advances when
// every message was written, so a failed publish is retried by the next pass.
func (e *Engine) publish(ctx context.Context, s *slot, d register.Descriptor, v register.Value, known bool, force bool) error {
	epoch := e.epoch.Load()
	prev := s.last
	prevKnown := prev.set && prev.epoch == epoch && prev.known

	var payload string
	if known {
		var err error
		if payload, err = mapper.Encode(d, v); err != nil {
			e.emit(Event{Kind: EventEncodeFailed, Register: d.Name, Err: err})
			known = false
		}
	}

	if known {
		if !force && prevKnown && prev.value == v {
			return nil
		}

		if force || !prevKnown {
			if err := e.writeAvailability(ctx, e.mapper.AvailabilityTopic(d), hass.Available); err != nil {
				return err
			}
		}

		if err := e.writer.WriteTopic(ctx, e.mapper.StateTopic(d), mqtt.Retained(e.cfg.QoS), []byte(payload)); err != nil {
			return fmt.Errorf("publish state of %s: %w", d.Name, err)
		}
	} else {
		if !force && !prevKnown {
			return nil
		}

		if err := e.writeAvailability(ctx, e.mapper.AvailabilityTopic(d), hass.Unavailable); err != nil {
			return err
		}
	}

	s.last = published{set: true, epoch: epoch, known: known, value: v}
	return nil
}

func (e *Engine) writeAvailability(ctx context.Context, topic string, a hass.Availability) error {
	payload, err := hass.AvailabilityMarshaler(a)
	if err != nil {
		return err
	}

	if err = e.writer.WriteTopic(ctx, topic, mqtt.Retained(e.cfg.QoS), payload); err != nil {
		return fmt.Errorf("publish %s to %s: %w", a, topic, err)
	}

	return nil
}

func (e *Engine) generations() map[register.Address]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make(map[register.Address]uint64, len(e.generation))
	for a, g := range e.generation {
		result[a] = g
	}

	return result
}

func (e *Engine) isPending(a register.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.isPendingLocked(a)
}

func (e *Engine) isPendingLocked(a register.Address) bool {
	_, ok := e.pending[a]
	return ok
}

func (e *Engine) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}

	e.log.Log(context.Background(), ev.Kind.level(), "Sync event", slog.Any("event", ev))

	if e.cfg.Observer != nil {
		e.cfg.Observer(ev)
	}
}
