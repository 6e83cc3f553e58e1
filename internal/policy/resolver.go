package policy

import "tiplens/internal/catalog"

// Resolver gates tips behind their prerequisites: a tip becomes eligible once
// every dependency is suppressed. Cycles in the catalog are not detected;
// members of a cycle stay ineligible.
type Resolver struct {
	catalog    *catalog.Catalog
	completion Completion
}

// NewResolver builds a resolver over cat using completion for dependencies.
func NewResolver(cat *catalog.Catalog, completion Completion) *Resolver {
	return &Resolver{catalog: cat, completion: completion}
}

// IsEligible reports whether the tip may be shown. Unknown tips are never
// eligible.
func (r *Resolver) IsEligible(id string) bool {
	meta := r.catalog.MetaByID(id)
	if meta == nil {
		return false
	}
	for _, dep := range meta.Deps {
		if !r.completion.IsSuppressed(dep) {
			return false
		}
	}
	return true
}
