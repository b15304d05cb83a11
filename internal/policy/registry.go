package policy

import (
	"sort"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// Registry holds all default block-lists.
type Registry struct {
	lists map[string]BlockList
}

// NewRegistry creates a registry with all default lists.
func NewRegistry() *Registry {
	r := &Registry{
		lists: make(map[string]BlockList),
	}

	r.Register(NewGamingList())
	r.Register(NewAIList())
	r.Register(NewBrowserList())
	r.Register(NewDoHList())

	return r
}

// NewRegistryWithLists creates a registry with custom lists (for testing).
func NewRegistryWithLists(lists ...BlockList) *Registry {
	r := &Registry{
		lists: make(map[string]BlockList),
	}
	for _, l := range lists {
		r.Register(l)
	}
	return r
}

// Register adds a list to the registry, replacing one with the same ID.
func (r *Registry) Register(l BlockList) {
	r.lists[l.ID()] = l
}

// Get returns a list by ID.
func (r *Registry) Get(id string) (BlockList, bool) {
	l, ok := r.lists[id]
	return l, ok
}

// GetAll returns all registered lists ordered by ID.
func (r *Registry) GetAll() []BlockList {
	result := make([]BlockList, 0, len(r.lists))
	for _, id := range r.List() {
		result = append(result, r.lists[id])
	}
	return result
}

// List returns all list IDs in ascending order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.lists))
	for id := range r.lists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultProcesses returns the union of default process names enabled by cfg.
func (r *Registry) DefaultProcesses(cfg *domain.AppConfig) domain.StringSet {
	out := domain.NewStringSet()
	for _, l := range r.lists {
		if l.ProcessesEnabled(cfg) {
			out.Add(l.ProcessNames()...)
		}
	}
	return out
}

// DefaultDomains returns the union of default domains enabled by cfg.
func (r *Registry) DefaultDomains(cfg *domain.AppConfig) domain.StringSet {
	out := domain.NewStringSet()
	for _, l := range r.lists {
		if l.DomainsEnabled(cfg) {
			out.Add(l.Domains()...)
		}
	}
	return out
}
