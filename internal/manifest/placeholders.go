package manifest

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// MapsAPIKey is the placeholder and lookup key for the Google Maps API key.
	MapsAPIKey = "GOOGLE_MAPS_API_KEY"
	// MapsAPIKeySentinel is published when the Maps key is not configured.
	MapsAPIKeySentinel = "GOOGLE_MAPS_API_KEY_NOT_SET"
)

var (
	// ErrInvalidSpec indicates an empty or duplicated placeholder definition.
	ErrInvalidSpec = errors.New("invalid placeholder spec")
)

// Spec declares one manifest placeholder.
type Spec struct {
	// Placeholder is the name used in the manifest template.
	Placeholder string `yaml:"placeholder"`
	// Key is looked up in the configured sources. Defaults to Placeholder.
	Key string `yaml:"key"`
	// Sentinel is published when no source has Key. Defaults to Key + "_NOT_SET".
	Sentinel string `yaml:"sentinel"`
}

// DefaultSpecs returns the placeholders every build publishes.
func DefaultSpecs() []Spec {
	return []Spec{
		{Placeholder: MapsAPIKey, Key: MapsAPIKey, Sentinel: MapsAPIKeySentinel},
	}
}

// Normalize fills in default keys and sentinels and rejects empty or
// duplicated placeholder names.
func Normalize(specs []Spec) ([]Spec, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no placeholders defined", ErrInvalidSpec)
	}

	seen := make(map[string]struct{}, len(specs))
	out := make([]Spec, 0, len(specs))
	for i, spec := range specs {
		if spec.Placeholder == "" {
			return nil, fmt.Errorf("%w: entry %d has no placeholder name", ErrInvalidSpec, i)
		}
		if _, dup := seen[spec.Placeholder]; dup {
			return nil, fmt.Errorf("%w: placeholder %q defined twice", ErrInvalidSpec, spec.Placeholder)
		}
		seen[spec.Placeholder] = struct{}{}

		if spec.Key == "" {
			spec.Key = spec.Placeholder
		}
		if spec.Sentinel == "" {
			spec.Sentinel = spec.Key + "_NOT_SET"
		}
		out = append(out, spec)
	}
	return out, nil
}

// ValueResolver is satisfied by *resolver.Resolver.
type ValueResolver interface {
	ValueOr(key, sentinel string) (string, bool)
}

// Entry is one resolved placeholder.
type Entry struct {
	Name         string
	Key          string
	Value        string
	UsedSentinel bool
}

// Placeholders is an immutable set of resolved manifest placeholders.
type Placeholders struct {
	entries map[string]Entry
}

// Build resolves every spec once and returns the resulting set.
func Build(r ValueResolver, specs []Spec) (Placeholders, error) {
	normalized, err := Normalize(specs)
	if err != nil {
		return Placeholders{}, err
	}

	entries := make(map[string]Entry, len(normalized))
	for _, spec := range normalized {
		value, usedSentinel := r.ValueOr(spec.Key, spec.Sentinel)
		entries[spec.Placeholder] = Entry{
			Name:         spec.Placeholder,
			Key:          spec.Key,
			Value:        value,
			UsedSentinel: usedSentinel,
		}
	}
	return Placeholders{entries: entries}, nil
}

// Get returns the value published for name.
func (p Placeholders) Get(name string) (string, bool) {
	e, ok := p.entries[name]
	return e.Value, ok
}

// Entry returns the full record for name.
func (p Placeholders) Entry(name string) (Entry, bool) {
	e, ok := p.entries[name]
	return e, ok
}

// Len returns the number of placeholders.
func (p Placeholders) Len() int {
	return len(p.entries)
}

// Names returns placeholder names in sorted order.
func (p Placeholders) Names() []string {
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns all records sorted by name.
func (p Placeholders) Entries() []Entry {
	out := make([]Entry, 0, len(p.entries))
	for _, name := range p.Names() {
		out = append(out, p.entries[name])
	}
	return out
}

// Map returns a copy of the name to value mapping handed to the packager.
func (p Placeholders) Map() map[string]string {
	out := make(map[string]string, len(p.entries))
	for name, e := range p.entries {
		out[name] = e.Value
	}
	return out
}

// Missing returns the names that were published with their sentinel.
func (p Placeholders) Missing() []string {
	var missing []string
	for _, name := range p.Names() {
		if p.entries[name].UsedSentinel {
			missing = append(missing, name)
		}
	}
	return missing
}
