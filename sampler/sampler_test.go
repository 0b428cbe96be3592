package sampler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/vents2mqtt/device"
	"github.com/nlowe/vents2mqtt/register"
)

type fakeTransport struct {
	mu     sync.Mutex
	values map[register.Address]register.Value
	errs   map[register.Address]error
	reads  []register.Address
}

func (f *fakeTransport) ReadRegister(_ context.Context, d register.Descriptor) (register.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads = append(f.reads, d.Address)
	if err, ok := f.errs[d.Address]; ok {
		return 0, err
	}

	return f.values[d.Address], nil
}

func (f *fakeTransport) WriteRegister(context.Context, register.Descriptor, register.Value) error {
	return nil
}

func testCatalog() *register.Catalog {
	return register.MustNew(
		register.Descriptor{Address: 1, Name: "power", Direction: register.ReadWrite, Kind: register.Boolean},
		register.Descriptor{Address: 2, Name: "humidity", Kind: register.Integer},
		register.Descriptor{Address: 3, Name: "supply_temp", Kind: register.Float, Scale: 0.1, Width: 2},
	)
}

func TestSample(t *testing.T) {
	tr := &fakeTransport{values: map[register.Address]register.Value{1: 1, 2: 0, 3: 215}}

	result, err := New(tr).Sample(context.Background(), testCatalog())
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Len(t, result.Snapshot.Readings, 3)

	r, ok := result.Snapshot.Get(2)
	require.True(t, ok)
	assert.Equal(t, register.Value(0), r.Value, "zero is a known value")
	assert.Equal(t, []register.Address{1, 2, 3}, tr.reads)
}

func TestSamplePartialFailure(t *testing.T) {
	tr := &fakeTransport{
		values: map[register.Address]register.Value{1: 1, 3: 215},
		errs:   map[register.Address]error{2: fmt.Errorf("%w: timeout", device.ErrRegisterRead)},
	}

	result, err := New(tr).Sample(context.Background(), testCatalog())
	require.NoError(t, err)

	_, ok := result.Snapshot.Get(2)
	assert.False(t, ok, "failed register must be unknown")

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "humidity", result.Failures[0].Descriptor.Name)
	assert.ErrorIs(t, result.Failures[0], device.ErrRegisterRead)

	_, ok = result.Snapshot.Get(3)
	assert.True(t, ok, "cycle continues after a register fails")
}

func TestSampleUnreachable(t *testing.T) {
	tr := &fakeTransport{
		values: map[register.Address]register.Value{1: 1, 3: 215},
		errs:   map[register.Address]error{2: fmt.Errorf("%w: no route", device.ErrDeviceUnreachable)},
	}

	_, err := New(tr).Sample(context.Background(), testCatalog())
	require.ErrorIs(t, err, device.ErrDeviceUnreachable)
	assert.Equal(t, []register.Address{1, 2}, tr.reads, "cycle stops at the first unreachable error")
}

func TestSampleFiltered(t *testing.T) {
	tr := &fakeTransport{values: map[register.Address]register.Value{1: 1, 2: 40, 3: 215}}

	result, err := New(tr).SampleFiltered(context.Background(), testCatalog(), func(d register.Descriptor) bool {
		return d.Address != 1
	})
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "power", result.Skipped[0].Name)
	assert.Equal(t, []register.Address{2, 3}, tr.reads)
}

func TestSampleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeTransport{}).Sample(ctx, testCatalog())
	require.ErrorIs(t, err, context.Canceled)
}

func TestSampleOne(t *testing.T) {
	tr := &fakeTransport{
		values: map[register.Address]register.Value{1: 1},
		errs:   map[register.Address]error{2: device.ErrRegisterRead},
	}
	s := New(tr)
	catalog := testCatalog()

	power, _ := catalog.ByName("power")
	r, err := s.SampleOne(context.Background(), power)
	require.NoError(t, err)
	assert.Equal(t, register.Value(1), r.Value)

	humidity, _ := catalog.ByName("humidity")
	_, err = s.SampleOne(context.Background(), humidity)
	require.ErrorIs(t, err, device.ErrRegisterRead)
}
