package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/mapper"
	"github.com/nlowe/vents2mqtt/mqtt"
	"github.com/nlowe/vents2mqtt/register"
)

// ErrWriteNotConfirmed is reported when a write was accepted by the device but the resampled value never matched the
// requested value within the attempt budget.
var ErrWriteNotConfirmed = errors.New("write not confirmed")

// errSuperseded stops an attempt loop whose command was replaced by a newer one.
var errSuperseded = errors.New("superseded by a newer command")

// PendingWrite is a command accepted from the broker that the device has not confirmed yet.
type PendingWrite struct {
	Address    register.Address
	Requested  register.Value
	AcceptedAt time.Time
	Attempt    int

	seq uint64
}

func (p PendingWrite) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("address", p.Address.String()),
		slog.Int64("requested", int64(p.Requested)),
		slog.Int("attempt", p.Attempt),
		slog.Time("accepted_at", p.AcceptedAt),
	)
}

// Pending returns a copy of the outstanding writes ordered by address.
func (e *Engine) Pending() []PendingWrite {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]PendingWrite, 0, len(e.pending))
	for _, p := range e.pending {
		result = append(result, *p)
	}

	slices.SortFunc(result, func(a, b PendingWrite) int {
		return int(a.Address) - int(b.Address)
	})

	return result
}

// Subscribe registers the engine's handlers with s: every command topic of the device, and Home Assistant's status
// topic so a Home Assistant restart triggers Rediscover. Handlers started by these subscriptions use ctx.
func (e *Engine) Subscribe(ctx context.Context, s mqtt.Subscriber) error {
	status := discovery.HomeAssistantAvailability(
		e.mapper.DiscoveryPrefix(),
		mqtt.ReadOptions{QoS: e.cfg.QoS, RetainHandling: mqtt.RetainHandlingIgnoreRetained},
	)

	status.Watch(func(a hass.Availability) {
		if a != hass.Available {
			return
		}

		if !e.track() {
			e.log.Debug("Shutting down, ignoring Home Assistant birth message")
			return
		}

		go func() {
			defer e.commands.Done()
			_ = e.Rediscover(ctx)
		}()
	})

	commands := mqtt.Subscription{
		Topic:   e.mapper.CommandFilter(),
		Options: mqtt.ReadOptions{QoS: e.cfg.QoS, RetainHandling: mqtt.RetainHandlingIgnoreRetained},
	}

	mux := &mqtt.Mux{}
	mux.Handle(commands.Topic, e.CommandHandler(ctx))
	mux.Handle(status.FullyQualifiedTopic(""), status)

	return s.Subscribe(ctx, mux, commands, status.Subscription(""))
}

// CommandHandler returns the mqtt.Handler for command topics. Messages are routed synchronously so commands for the
// same register are ordered by arrival; the device exchange runs on its own goroutine.
func (e *Engine) CommandHandler(ctx context.Context) mqtt.Handler {
	return mqtt.HandlerFunc(func(_ mqtt.Writer, topic string, payload []byte) {
		cmd, err := e.mapper.Route(topic, payload)
		if err != nil {
			e.emit(Event{Kind: EventInvalidCommand, Register: cmd.Descriptor.Name, Err: err})
			return
		}

		if !e.track() {
			e.emit(Event{Kind: EventInvalidCommand, Register: cmd.Descriptor.Name, Err: ErrClosed})
			return
		}

		pw := e.accept(cmd)
		go func() {
			defer e.commands.Done()
			e.apply(ctx, cmd.Descriptor, pw)
		}()
	})
}

// accept records a PendingWrite for cmd, superseding any pending write for the same register.
func (e *Engine) accept(cmd mapper.Command) PendingWrite {
	e.mu.Lock()
	a := cmd.Descriptor.Address
	old, superseded := e.pending[a]
	if superseded {
		e.log.With(ventslog.Register(cmd.Descriptor.Name), slog.Any("pending", *old)).Debug("Superseding pending write")
	}

	e.seq++
	e.generation[a]++
	pw := &PendingWrite{Address: a, Requested: cmd.Value, AcceptedAt: e.now(), seq: e.seq}
	e.pending[a] = pw
	e.mu.Unlock()

	if superseded {
		e.emit(Event{Kind: EventWriteSuperseded, Register: cmd.Descriptor.Name})
	}

	return *pw
}

// current reports whether pw is still the pending write for its register and records the attempt number.
func (e *Engine) current(pw PendingWrite, attempt int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pending[pw.Address]
	if !ok || p.seq != pw.seq {
		return false
	}

	p.Attempt = attempt
	return true
}

// apply writes pw.Requested and resamples the register until the device reports the requested value or the attempt
// budget runs out. Attempts are separated by Config.WriteRetryDelay. When the budget is exhausted the pending write is
// dropped and the last confirmed value is republished, so Home Assistant shows what the device actually does.
func (e *Engine) apply(ctx context.Context, d register.Descriptor, pw PendingWrite) {
	s := e.slots[d.Address]
	logger := e.log.With(ventslog.Register(d.Name), slog.Int64("requested", int64(pw.Requested)))

	var lastErr error
	for attempt := 1; attempt <= e.cfg.WriteAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, e.cfg.WriteRetryDelay); err != nil {
				e.abandon(pw)
				return
			}
		}

		confirmed, err := e.attempt(ctx, s, d, pw, attempt)
		if errors.Is(err, errSuperseded) {
			logger.Debug("Command superseded, stopping")
			return
		}

		if confirmed {
			logger.With(slog.Int("attempt", attempt)).Info("Write confirmed")
			e.emit(Event{Kind: EventWriteConfirmed, Register: d.Name})
			return
		}

		lastErr = err
		e.emit(Event{Kind: EventWriteAttemptFailed, Register: d.Name, Err: err})

		if ctx.Err() != nil {
			e.abandon(pw)
			return
		}
	}

	e.revert(ctx, s, d, pw, lastErr)
}

// attempt performs one write and resample while holding the register's lock.
func (e *Engine) attempt(ctx context.Context, s *slot, d register.Descriptor, pw PendingWrite, attempt int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !e.current(pw, attempt) {
		return false, errSuperseded
	}

	err := e.transport.WriteRegister(ctx, d, pw.Requested)

	e.mu.Lock()
	e.generation[d.Address]++
	e.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("attempt %d: %w", attempt, err)
	}

	reading, err := e.sampler.SampleOne(ctx, d)
	if err != nil {
		return false, fmt.Errorf("attempt %d: confirm: %w", attempt, err)
	}

	e.mu.Lock()
	e.snapshot.Set(d.Address, reading)
	if p, ok := e.pending[d.Address]; !ok || p.seq != pw.seq {
		e.mu.Unlock()
		return false, errSuperseded
	}

	if reading.Value != pw.Requested {
		e.mu.Unlock()
		return false, fmt.Errorf("attempt %d: %w: device reports %d", attempt, ErrWriteNotConfirmed, reading.Value)
	}

	delete(e.pending, d.Address)
	e.mu.Unlock()

	if err = e.publish(ctx, s, d, reading.Value, true, false); err != nil {
		e.emit(Event{Kind: EventPublishFailed, Register: d.Name, Err: err})
	}

	return true, nil
}

// revert gives up on pw and republishes the register's last confirmed value, bypassing no-op suppression.
func (e *Engine) revert(ctx context.Context, s *slot, d register.Descriptor, pw PendingWrite, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.mu.Lock()
	p, ok := e.pending[d.Address]
	if !ok || p.seq != pw.seq {
		e.mu.Unlock()
		return
	}

	delete(e.pending, d.Address)
	current, known := e.snapshot.Get(d.Address)
	e.mu.Unlock()

	err := fmt.Errorf("%w: %s after %d attempt(s)", ErrWriteNotConfirmed, d.Name, e.cfg.WriteAttempts)
	if cause != nil && !errors.Is(cause, ErrWriteNotConfirmed) {
		err = fmt.Errorf("%w: %w", err, cause)
	}

	e.emit(Event{Kind: EventWriteNotConfirmed, Register: d.Name, Err: err})

	if pubErr := e.publish(ctx, s, d, current.Value, known, true); pubErr != nil {
		e.emit(Event{Kind: EventPublishFailed, Register: d.Name, Err: pubErr})
	}
}

// abandon drops pw without publishing. Used on shutdown.
func (e *Engine) abandon(pw PendingWrite) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.pending[pw.Address]; ok && p.seq == pw.seq {
		delete(e.pending, pw.Address)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
