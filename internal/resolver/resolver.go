// Package resolver picks configuration values from an ordered list of
// sources. The first source reporting a key wins; an empty string counts as a
// value. When no source has the key, callers asking for a literal receive a
// sentinel and the operator is warned once per key.
package resolver

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/manifest-placeholders/internal/source"
)

var (
	// ErrNoSources is returned when a resolver is created without sources.
	ErrNoSources = errors.New("resolver requires at least one source")
)

// Value is either Present with a string or Absent.
type Value struct {
	value   string
	present bool
}

// Present wraps a found value, including the empty string.
func Present(v string) Value {
	return Value{value: v, present: true}
}

// Absent is the zero Value.
func Absent() Value {
	return Value{}
}

// Get returns the value and whether it is present.
func (v Value) Get() (string, bool) {
	return v.value, v.present
}

// IsPresent reports whether a source supplied the value.
func (v Value) IsPresent() bool {
	return v.present
}

// Or returns the value when present, fallback otherwise.
func (v Value) Or(fallback string) string {
	if v.present {
		return v.value
	}
	return fallback
}

// Result describes the outcome of resolving one key.
type Result struct {
	Key   string
	Value Value
	// Source names the source that supplied the value; empty when Absent.
	Source string
}

// Resolver queries sources in precedence order.
type Resolver struct {
	sources []source.Source
	logger  *zap.Logger
	hint    string

	mu     sync.Mutex
	warned map[string]struct{}
}

// New creates a Resolver. Sources are consulted in the given order.
func New(logger *zap.Logger, sources ...source.Source) (*Resolver, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ordered := make([]source.Source, len(sources))
	copy(ordered, sources)

	return &Resolver{
		sources: ordered,
		logger:  logger,
		hint:    remedyHint(ordered),
		warned:  make(map[string]struct{}),
	}, nil
}

// Resolve returns the first present value for key. It has no side effects.
func (r *Resolver) Resolve(key string) Result {
	for _, src := range r.sources {
		if v, ok := src.Lookup(key); ok {
			return Result{Key: key, Value: Present(v), Source: src.Name()}
		}
	}
	return Result{Key: key, Value: Absent()}
}

// ValueOr resolves key and substitutes sentinel when no source has it. The
// first substitution for a key logs a warning; later ones are silent.
func (r *Resolver) ValueOr(key, sentinel string) (string, bool) {
	res := r.Resolve(key)
	if v, ok := res.Value.Get(); ok {
		return v, false
	}

	r.warnMissing(key, sentinel)
	return sentinel, true
}

// Hint tells an operator where a missing value can be supplied, naming the
// configured sources, e.g. "Set it in android/local.properties or as
// environment variable".
func (r *Resolver) Hint() string {
	return r.hint
}

// Sources returns the source names in precedence order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, src := range r.sources {
		names[i] = src.Name()
	}
	return names
}

func (r *Resolver) warnMissing(key, sentinel string) {
	r.mu.Lock()
	_, done := r.warned[key]
	if !done {
		r.warned[key] = struct{}{}
	}
	r.mu.Unlock()

	if done {
		return
	}

	r.logger.Warn(key+" not found!",
		zap.String("key", key),
		zap.String("sentinel", sentinel),
		zap.Strings("sources", r.Sources()),
		zap.String("hint", r.hint),
	)
}

// remedyHint lists file-like sources first and the environment last.
func remedyHint(sources []source.Source) string {
	var places []string
	env := false
	for _, src := range sources {
		if _, ok := src.(*source.Env); ok {
			env = true
			continue
		}
		places = append(places, "in "+src.Name())
	}
	if env {
		places = append(places, "as environment variable")
	}
	return "Set it " + strings.Join(places, " or ")
}
