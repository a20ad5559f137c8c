// Package registry keeps the catalog of APIs the assistant can route to.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("api not registered")

// Registration describes one API. Either Endpoint or Handler must be set.
type Registration struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Categories  []string        `json:"categories" yaml:"categories"`
	Keywords    []string        `json:"keywords,omitempty" yaml:"keywords"`
	Enabled     bool            `json:"enabled" yaml:"-"`
	Endpoint    string          `json:"endpoint,omitempty" yaml:"endpoint"`
	Handler     gin.HandlerFunc `json:"-" yaml:"-"`
}

// Local reports whether the registration is served in-process.
func (r *Registration) Local() bool { return r.Handler != nil }

func (r *Registration) validate() error {
	switch {
	case r.ID == "":
		return errors.New("missing id")
	case r.Name == "":
		return errors.New("missing name")
	case r.Description == "":
		return errors.New("missing description")
	case len(r.Categories) == 0:
		return errors.New("missing categories")
	case r.Handler == nil && r.Endpoint == "":
		return errors.New("missing handler or endpoint")
	}
	return nil
}

// Source produces one registration. It is the in-process counterpart of a
// manifest file.
type Source func() (Registration, error)

type Stats struct {
	Total      int `json:"total"`
	Enabled    int `json:"enabled"`
	Disabled   int `json:"disabled"`
	Categories int `json:"categories"`
}

type Registry struct {
	sources     []Source
	manifestDir string
	log         zerolog.Logger
	onChange    func(Stats)

	mu         sync.RWMutex
	byID       map[string]*Registration
	byCategory map[string][]*Registration
	order      []*Registration
}

type Option func(*Registry)

// WithManifestDir also loads YAML manifests from dir on Initialize.
func WithManifestDir(dir string) Option {
	return func(r *Registry) { r.manifestDir = dir }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithObserver is called with fresh stats after every mutation.
func WithObserver(fn func(Stats)) Option {
	return func(r *Registry) { r.onChange = fn }
}

func New(sources []Source, opts ...Option) *Registry {
	r := &Registry{
		sources:    sources,
		log:        zerolog.Nop(),
		byID:       map[string]*Registration{},
		byCategory: map[string][]*Registration{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize loads every source and manifest and replaces the current
// registrations. Invalid entries are logged and skipped; only an unreadable
// manifest directory is an error, and it leaves the registry unchanged.
func (r *Registry) Initialize() error {
	var loaded []Registration
	for i, src := range r.sources {
		reg, err := runSource(src)
		if err != nil {
			r.log.Warn().Err(err).Int("source", i).Msg("skipping api source")
			continue
		}
		loaded = append(loaded, reg)
	}

	if r.manifestDir != "" {
		manifests, err := loadManifests(r.manifestDir, r.log)
		if err != nil {
			return err
		}
		loaded = append(loaded, manifests...)
	}

	byID := map[string]*Registration{}
	byCategory := map[string][]*Registration{}
	var order []*Registration
	for i := range loaded {
		reg := &loaded[i]
		if err := reg.validate(); err != nil {
			r.log.Warn().Err(err).Str("id", reg.ID).Msg("skipping invalid api registration")
			continue
		}
		if _, dup := byID[reg.ID]; dup {
			r.log.Warn().Str("id", reg.ID).Msg("skipping duplicate api registration")
			continue
		}
		byID[reg.ID] = reg
		for _, c := range reg.Categories {
			byCategory[c] = append(byCategory[c], reg)
		}
		order = append(order, reg)
	}

	r.mu.Lock()
	r.byID, r.byCategory, r.order = byID, byCategory, order
	stats := r.statsLocked()
	r.mu.Unlock()

	r.log.Info().Int("total", stats.Total).Int("categories", stats.Categories).Msg("api registry initialized")
	r.notify(stats)
	return nil
}

// Reload rebuilds the registry from its sources and swaps it in. On error the
// current registrations stay in place.
func (r *Registry) Reload() error {
	return r.Initialize()
}

func runSource(src Source) (reg Registration, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("source panicked: %v", p)
		}
	}()
	return src()
}

// Get returns a copy of the registration.
func (r *Registry) Get(id string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

func (r *Registry) ByCategory(category string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyAll(r.byCategory[category])
}

// Categories returns every category name, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byCategory))
	for c := range r.byCategory {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// List returns every registration in insertion order.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyAll(r.order)
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked()
}

func (r *Registry) statsLocked() Stats {
	s := Stats{Total: len(r.byID), Categories: len(r.byCategory)}
	for _, reg := range r.byID {
		if reg.Enabled {
			s.Enabled++
		}
	}
	s.Disabled = s.Total - s.Enabled
	return s
}

// SetEnabled flips the enabled flag in place.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	reg, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	reg.Enabled = enabled
	stats := r.statsLocked()
	r.mu.Unlock()

	r.log.Info().Str("id", id).Bool("enabled", enabled).Msg("api enabled flag changed")
	r.notify(stats)
	return nil
}

// IsEnabled reports whether id is registered and enabled.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	return ok && reg.Enabled
}

func (r *Registry) notify(s Stats) {
	if r.onChange != nil {
		r.onChange(s)
	}
}

func copyAll(in []*Registration) []Registration {
	out := make([]Registration, 0, len(in))
	for _, reg := range in {
		out = append(out, *reg)
	}
	return out
}
