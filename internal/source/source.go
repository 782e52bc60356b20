package source

import "os"

// Source is an ordered provider of optional string values.
type Source interface {
	// Name returns a human-readable name used in logs and results.
	Name() string
	// Lookup reports the value stored under key and whether it was present.
	// An empty value with found == true is a present value.
	Lookup(key string) (value string, found bool)
}

// LookupFunc matches the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Env reads values from the process environment.
type Env struct {
	lookup LookupFunc
}

// NewEnv creates an environment source backed by os.LookupEnv.
func NewEnv() *Env {
	return NewEnvWithLookup(os.LookupEnv)
}

// NewEnvWithLookup creates an environment source backed by the given lookup,
// primarily for tests.
func NewEnvWithLookup(lookup LookupFunc) *Env {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Env{lookup: lookup}
}

// Name implements Source.
func (e *Env) Name() string {
	return "environment"
}

// Lookup implements Source.
func (e *Env) Lookup(key string) (string, bool) {
	return e.lookup(key)
}

// Static serves values from a fixed map.
type Static struct {
	name   string
	values map[string]string
}

// NewStatic copies values into a new static source.
func NewStatic(name string, values map[string]string) *Static {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Static{name: name, values: cp}
}

// Name implements Source.
func (s *Static) Name() string {
	return s.name
}

// Lookup implements Source.
func (s *Static) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}
