package register

import (
	"maps"
	"time"
)

// Reading is the last known value of one register.
type Reading struct {
	Value     Value
	SampledAt time.Time
}

// Snapshot maps addresses to their last known Reading. A missing address means the value is unknown, never zero.
type Snapshot struct {
	Readings  map[Address]Reading
	SampledAt time.Time
}

// NewSnapshot returns an empty Snapshot taken at the provided time.
func NewSnapshot(at time.Time) Snapshot {
	return Snapshot{Readings: map[Address]Reading{}, SampledAt: at}
}

// Get returns the reading for address, if known.
func (s Snapshot) Get(address Address) (Reading, bool) {
	r, ok := s.Readings[address]
	return r, ok
}

// Set records a reading for address.
func (s Snapshot) Set(address Address, r Reading) {
	s.Readings[address] = r
}

// Forget marks address as unknown.
func (s Snapshot) Forget(address Address) {
	delete(s.Readings, address)
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Readings: maps.Clone(s.Readings), SampledAt: s.SampledAt}
}
