package register

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// ErrInvalidCatalog is the error returned by New when the descriptors violate a catalog invariant.
var ErrInvalidCatalog = errors.New("invalid register catalog")

var slug = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// Catalog is the immutable, ordered set of registers supported by the bridge.
type Catalog struct {
	ordered   []Descriptor
	byAddress map[Address]int
	byName    map[string]int
}

// New validates descriptors and builds a Catalog that keeps them in the provided order. Addresses and names must be
// unique, names must be lower-case slugs, Enum must be present exactly when Kind is Enumerated, and Scale is only
// allowed (and required) for Float registers.
func New(descriptors ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		ordered:   make([]Descriptor, 0, len(descriptors)),
		byAddress: make(map[Address]int, len(descriptors)),
		byName:    make(map[string]int, len(descriptors)),
	}

	var errs []error
	for _, d := range descriptors {
		if err := validate(d); err != nil {
			errs = append(errs, err)
			continue
		}

		if _, dup := c.byAddress[d.Address]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate address %s", d.Name, d.Address))
			continue
		}

		if _, dup := c.byName[d.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate name", d.Name))
			continue
		}

		d.Enum = slices.Clone(d.Enum)
		c.byAddress[d.Address] = len(c.ordered)
		c.byName[d.Name] = len(c.ordered)
		c.ordered = append(c.ordered, d)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}

	return c, nil
}

// MustNew is like New but panics if the catalog is invalid. It is intended for static catalogs.
func MustNew(descriptors ...Descriptor) *Catalog {
	c, err := New(descriptors...)
	if err != nil {
		panic(err)
	}

	return c
}

func validate(d Descriptor) error {
	if !slug.MatchString(d.Name) {
		return fmt.Errorf("%q: name must be a lower-case slug", d.Name)
	}

	if d.Kind > Float {
		return fmt.Errorf("%s: unknown kind %s", d.Name, d.Kind)
	}

	if d.Direction > ReadWrite {
		return fmt.Errorf("%s: unknown direction %s", d.Name, d.Direction)
	}

	if d.Width < 0 || d.Width > 4 {
		return fmt.Errorf("%s: width must be between 1 and 4 bytes", d.Name)
	}

	if (d.Kind == Enumerated) != (len(d.Enum) > 0) {
		return fmt.Errorf("%s: enum options are required for enumerated registers and forbidden otherwise", d.Name)
	}

	labels := make(map[string]bool, len(d.Enum))
	codes := make(map[Value]bool, len(d.Enum))
	for _, o := range d.Enum {
		if o.Label == "" || labels[o.Label] || codes[o.Code] {
			return fmt.Errorf("%s: enum labels and codes must be unique and non-empty", d.Name)
		}

		if !d.Fits(o.Code) {
			return fmt.Errorf("%s: enum code %d does not fit in %d byte(s)", d.Name, o.Code, d.Bytes())
		}

		labels[o.Label], codes[o.Code] = true, true
	}

	if d.Kind == Float && d.Scale <= 0 {
		return fmt.Errorf("%s: float registers need a positive scale", d.Name)
	}

	if d.Kind != Float && d.Scale != 0 {
		return fmt.Errorf("%s: scale is only valid for float registers", d.Name)
	}

	if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
		return fmt.Errorf("%s: min is greater than max", d.Name)
	}

	return nil
}

// Describe returns the descriptor registered for address.
func (c *Catalog) Describe(address Address) (Descriptor, bool) {
	i, ok := c.byAddress[address]
	if !ok {
		return Descriptor{}, false
	}

	return c.ordered[i], true
}

// ByName returns the descriptor with the provided name.
func (c *Catalog) ByName(name string) (Descriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Descriptor{}, false
	}

	return c.ordered[i], true
}

// All returns every descriptor in definition order. The returned slice is a copy.
func (c *Catalog) All() []Descriptor {
	return slices.Clone(c.ordered)
}

// Readable returns the descriptors the sampler polls. Every register supported by the device can be read, so this is
// the same set as All.
func (c *Catalog) Readable() []Descriptor {
	return c.All()
}

// Writable returns the descriptors that accept commands, in definition order.
func (c *Catalog) Writable() []Descriptor {
	var result []Descriptor
	for _, d := range c.ordered {
		if d.Writable() {
			result = append(result, d)
		}
	}

	return result
}

// Len returns the number of registers in the catalog.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
