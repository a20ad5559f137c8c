// Package apis declares the built-in registry entries and ties LLM backend
// availability to the registry.
package apis

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/internal/llm"
	"github.com/jwalitptl/detailing-api/internal/registry"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

const (
	ServicesID  = "services"
	CustomersID = "customers"
	ChatID      = "chat"

	backendPrefix = "llm."
)

// Handlers are the in-process APIs exposed through the registry.
type Handlers struct {
	Services  gin.HandlerFunc
	Customers gin.HandlerFunc
	Chat      gin.HandlerFunc
}

// BackendID is the registry id of an LLM backend.
func BackendID(id string) string { return backendPrefix + id }

// Sources returns one source per local API followed by one per backend.
func Sources(h Handlers, backends []llm.Backend) []registry.Source {
	sources := []registry.Source{
		local(registry.Registration{
			ID:          ServicesID,
			Name:        "Detailing services",
			Description: "Catalog of detailing packages with descriptions and prices",
			Categories:  []string{"services", "pricing", "catalog"},
			Keywords:    []string{"wash", "wax", "interior", "package", "price", "cost"},
		}, h.Services),
		local(registry.Registration{
			ID:          CustomersID,
			Name:        "Customers",
			Description: "Customer records with contact details and notes",
			Categories:  []string{"customers", "crm"},
			Keywords:    []string{"customer", "client", "email", "phone", "contact"},
		}, h.Customers),
		local(registry.Registration{
			ID:          ChatID,
			Name:        "Detailing assistant",
			Description: "Assistant answering questions through role-routed language models",
			Categories:  []string{"chat", "assistant"},
			Keywords:    []string{"question", "help", "quote", "book", "appointment"},
		}, h.Chat),
	}
	for _, b := range backends {
		b := b
		sources = append(sources, func() (registry.Registration, error) {
			return backendRegistration(b), nil
		})
	}
	return sources
}

func local(reg registry.Registration, h gin.HandlerFunc) registry.Source {
	return func() (registry.Registration, error) {
		if h == nil {
			return registry.Registration{}, fmt.Errorf("%s: no handler", reg.ID)
		}
		reg.Handler = h
		reg.Enabled = true
		return reg, nil
	}
}

func backendRegistration(b llm.Backend) registry.Registration {
	desc := fmt.Sprintf("Language model backend (%s)", b.Kind)
	if b.Model != "" {
		desc = fmt.Sprintf("Language model backend (%s, %s)", b.Kind, b.Model)
	}
	var keywords []string
	if b.Model != "" {
		keywords = append(keywords, strings.ToLower(b.Model))
	}
	return registry.Registration{
		ID:          BackendID(b.ID),
		Name:        b.Name,
		Description: desc,
		Categories:  []string{"llm", string(b.Kind)},
		Keywords:    keywords,
		Endpoint:    b.Endpoint,
		Enabled:     b.Enabled,
	}
}

// BackendCatalog reports a backend as enabled according to its registry
// entry. Backends the registry does not know keep their configured flag.
type BackendCatalog struct {
	backends *llm.StaticCatalog
	registry *registry.Registry
}

func NewBackendCatalog(backends *llm.StaticCatalog, reg *registry.Registry) *BackendCatalog {
	return &BackendCatalog{backends: backends, registry: reg}
}

func (c *BackendCatalog) Lookup(id string) (llm.Backend, bool) {
	b, ok := c.backends.Lookup(id)
	if !ok {
		return llm.Backend{}, false
	}
	return c.apply(b), true
}

func (c *BackendCatalog) Backends() []llm.Backend {
	out := c.backends.Backends()
	for i := range out {
		out[i] = c.apply(out[i])
	}
	return out
}

func (c *BackendCatalog) apply(b llm.Backend) llm.Backend {
	if reg, ok := c.registry.Get(BackendID(b.ID)); ok {
		b.Enabled = reg.Enabled
	}
	return b
}

// RegistryObserver keeps the registry gauges in line with registry stats.
func RegistryObserver(m *metrics.Metrics) func(registry.Stats) {
	return func(s registry.Stats) {
		if m == nil {
			return
		}
		m.RegistryEntries.WithLabelValues("enabled").Set(float64(s.Enabled))
		m.RegistryEntries.WithLabelValues("disabled").Set(float64(s.Disabled))
	}
}
