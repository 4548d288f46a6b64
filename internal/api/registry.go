package api

import (
	"fmt"
	"sort"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
)

// SummaryKind describes one quick-summary widget: which dimension the named
// entity lives on and whom it is profiled against.
type SummaryKind struct {
	Dimension    analytics.Dimension
	Counterparty analytics.Dimension
}

// KindRegistry holds the quick-summary kinds served under
// /api/quicksummary/:kind.
type KindRegistry struct {
	kinds map[string]SummaryKind
}

// NewKindRegistry creates and returns an empty registry.
func NewKindRegistry() *KindRegistry {
	return &KindRegistry{kinds: make(map[string]SummaryKind)}
}

// DefaultKinds registers the supplier, buyer, country and product widgets.
func DefaultKinds() *KindRegistry {
	r := NewKindRegistry()
	r.Register("supplier", SummaryKind{Dimension: analytics.DimSupplier, Counterparty: analytics.DimBuyer})
	r.Register("buyer", SummaryKind{Dimension: analytics.DimBuyer, Counterparty: analytics.DimSupplier})
	r.Register("country", SummaryKind{Dimension: analytics.DimDestination, Counterparty: analytics.DimSupplier})
	r.Register("product", SummaryKind{Dimension: analytics.DimHSCode, Counterparty: analytics.DimSupplier})
	return r
}

// Register adds a kind. Registering the same name twice is a programming
// error and panics.
func (r *KindRegistry) Register(name string, kind SummaryKind) {
	if _, exists := r.kinds[name]; exists {
		panic(fmt.Sprintf("Quick summary kind '%s' is already registered", name))
	}
	r.kinds[name] = kind
}

// Get retrieves the kind registered under name.
func (r *KindRegistry) Get(name string) (SummaryKind, bool) {
	kind, found := r.kinds[name]
	return kind, found
}

// Names lists the registered kinds in sorted order.
func (r *KindRegistry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
