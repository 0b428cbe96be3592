// Package sampler reads the registers of a catalog through a device.Transport and assembles them into a
// register.Snapshot.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nlowe/vents2mqtt/device"
	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/register"
)

// Failure records a register that could not be read during a cycle.
type Failure struct {
	Descriptor register.Descriptor
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Descriptor.Name, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one sample cycle. Registers listed in Failures are absent from Snapshot, and registers in
// Skipped were not read at all.
type Result struct {
	Snapshot register.Snapshot
	Failures []Failure
	Skipped  []register.Descriptor
}

// Filter decides whether a register is read during a cycle. Returning false skips it.
type Filter func(d register.Descriptor) bool

// Sampler polls registers. It holds no state between cycles, so one Sampler may serve concurrent callers as long as
// its Transport does.
type Sampler struct {
	transport device.Transport
	now       func() time.Time

	log *slog.Logger
}

func New(transport device.Transport) *Sampler {
	return &Sampler{
		transport: transport,
		now:       time.Now,
		log:       ventslog.ForComponent("sampler"),
	}
}

// Sample reads every readable register in catalog once. A register that fails to read is left out of the snapshot and
// reported in Result.Failures without stopping the cycle. If the device is unreachable the whole cycle is abandoned and
// the error wraps device.ErrDeviceUnreachable.
func (s *Sampler) Sample(ctx context.Context, catalog *register.Catalog) (Result, error) {
	return s.SampleFiltered(ctx, catalog, nil)
}

// SampleFiltered is like Sample but only reads registers accepted by filter. A nil filter reads everything.
func (s *Sampler) SampleFiltered(ctx context.Context, catalog *register.Catalog, filter Filter) (Result, error) {
	result := Result{Snapshot: register.NewSnapshot(s.now())}

	for _, d := range catalog.Readable() {
		if filter != nil && !filter(d) {
			result.Skipped = append(result.Skipped, d)
			continue
		}

		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		v, err := s.transport.ReadRegister(ctx, d)
		if device.Unreachable(err) {
			return Result{}, fmt.Errorf("sample: %w", err)
		}

		if err != nil {
			s.log.With(ventslog.Register(d.Name), ventslog.Error(err)).Debug("Failed to read register")
			result.Failures = append(result.Failures, Failure{Descriptor: d, Err: err})
			continue
		}

		result.Snapshot.Set(d.Address, register.Reading{Value: v, SampledAt: s.now()})
	}

	s.log.With(
		slog.Int("read", len(result.Snapshot.Readings)),
		slog.Int("failed", len(result.Failures)),
		slog.Int("skipped", len(result.Skipped)),
	).Debug("Sample cycle complete")

	return result, nil
}

// SampleOne reads a single register, used to confirm a write.
func (s *Sampler) SampleOne(ctx context.Context, d register.Descriptor) (register.Reading, error) {
	v, err := s.transport.ReadRegister(ctx, d)
	if err != nil {
		return register.Reading{}, fmt.Errorf("sample %s: %w", d.Name, err)
	}

	return register.Reading{Value: v, SampledAt: s.now()}, nil
}
