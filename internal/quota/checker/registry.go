package checker

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"dario.cat/mergo"

	"github.com/looplj/quotahub/internal/quota"
)

// Constructor builds a checker from its configuration.
type Constructor func(cfg quota.CheckerConfig) (Checker, error)

// Registry maps lowercase type names to constructors.
type Registry struct {
	mu       sync.RWMutex
	ctors    map[string]Constructor
	defaults map[string]map[string]any
}

func NewRegistry() *Registry {
	return &Registry{
		ctors:    make(map[string]Constructor),
		defaults: make(map[string]map[string]any),
	}
}

func normalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}

// Register inserts or replaces the constructor for typ.
func (r *Registry) Register(typ string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctors[normalizeType(typ)] = ctor
}

// SetDefaults installs per-type options that are used when a checker config omits them.
func (r *Registry) SetDefaults(defaults map[string]map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaults = make(map[string]map[string]any, len(defaults))
	for typ, opts := range defaults {
		r.defaults[normalizeType(typ)] = maps.Clone(opts)
	}
}

func (r *Registry) IsRegistered(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.ctors[normalizeType(typ)]

	return ok
}

// RegisteredTypes returns the registered type names in sorted order.
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.ctors))
}

// Create builds a checker for cfg using the constructor registered under typ.
func (r *Registry) Create(typ string, cfg quota.CheckerConfig) (Checker, error) {
	key := normalizeType(typ)

	r.mu.RLock()
	ctor, ok := r.ctors[key]
	defaults := r.defaults[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownType, typ, strings.Join(r.RegisteredTypes(), ", "))
	}

	opts := make(map[string]any, len(cfg.Options)+len(defaults))
	maps.Copy(opts, cfg.Options)

	if len(defaults) > 0 {
		if err := mergo.Merge(&opts, defaults); err != nil {
			return nil, fmt.Errorf("merge default options for %s: %w", cfg.ID, err)
		}
	}

	cfg.Options = opts

	return ctor(cfg)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry the built-in adapters register into.
func Default() *Registry {
	return defaultRegistry
}

func Register(typ string, ctor Constructor) {
	defaultRegistry.Register(typ, ctor)
}

func Create(typ string, cfg quota.CheckerConfig) (Checker, error) {
	return defaultRegistry.Create(typ, cfg)
}

func IsRegistered(typ string) bool {
	return defaultRegistry.IsRegistered(typ)
}

func RegisteredTypes() []string {
	return defaultRegistry.RegisteredTypes()
}
