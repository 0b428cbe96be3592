package platform

import (
	"encoding/json/jsontext"
	"errors"
	"fmt"

	"github.com/nlowe/vents2mqtt/discovery"
)

// ErrNoOptions is the error returned when marshaling a Select without options.
var ErrNoOptions = errors.New("select requires at least one option")

// Select is a writable entity with a fixed list of options.
//
// See https://www.home-assistant.io/integrations/select.mqtt/
type Select struct {
	State   string `vents2mqtt:"required"`
	Command string `vents2mqtt:"required"`

	Options    []string `vents2mqtt:"required"`
	Optimistic bool
}

func (s *Select) PlatformName() string {
	return "select"
}

func (s *Select) StateTopic() string {
	return s.State
}

func (s *Select) CommandTopic() string {
	return s.Command
}

func (s *Select) MarshalDiscoveryTo(e *jsontext.Encoder) error {
	var optionsErr error
	if len(s.Options) == 0 {
		optionsErr = fmt.Errorf("options: %w", ErrNoOptions)
	}

	return errors.Join(
		discovery.MarshalRequiredTopic("state", e, discovery.FieldStateTopic, s.State),
		discovery.MarshalRequiredTopic("command", e, discovery.FieldCommandTopic, s.Command),
		optionsErr,
		discovery.MaybeMarshalStdSlice(e, discovery.FieldOptions, s.Options),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldOptimistic, s.Optimistic),
	)
}
