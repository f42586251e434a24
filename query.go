package keel

import (
	"reflect"
)

// RegistrationQuery defines criteria for querying registrations.
type RegistrationQuery struct {
	// Service filters by a provided service type, with any key.
	// nil matches all registrations.
	Service reflect.Type

	// Sharing filters by sharing mode. nil matches all.
	Sharing *Sharing

	// Lifetime filters by lifetime. nil matches all.
	Lifetime *Lifetime

	// Ownership filters by ownership. nil matches all.
	Ownership *Ownership

	// Metadata filters by metadata key-value pairs.
	// All specified metadata must match for a registration to be included.
	Metadata map[string]any
}

// Query returns the explicit registrations of r matching the query criteria,
// parent layers first.
//
// Example:
//
//	// Find all handlers shared across the tree
//	shared := keel.SharingShared
//	results := keel.Query(scope.Registry(), keel.RegistrationQuery{
//	    Service: reflect.TypeOf((*http.Handler)(nil)).Elem(),
//	    Sharing: &shared,
//	})
func Query(r *Registry, query RegistrationQuery) []*Registration {
	var results []*Registration

	for _, reg := range r.Registrations() {
		if query.matches(reg) {
			results = append(results, reg)
		}
	}

	return results
}

// QueryIDs returns the ids of registrations matching the query criteria.
func QueryIDs(r *Registry, query RegistrationQuery) []ID {
	results := Query(r, query)

	ids := make([]ID, len(results))
	for i, reg := range results {
		ids[i] = reg.ID()
	}

	return ids
}

// FindByService returns all registrations providing t under any key.
func FindByService(r *Registry, t reflect.Type) []*Registration {
	return Query(r, RegistrationQuery{Service: t})
}

// FindByMetadata returns all registrations whose metadata holds value under key.
func FindByMetadata(r *Registry, key string, value any) []*Registration {
	return Query(r, RegistrationQuery{Metadata: map[string]any{key: value}})
}

// FindShared returns all registrations with shared instances.
func FindShared(r *Registry) []*Registration {
	shared := SharingShared

	return Query(r, RegistrationQuery{Sharing: &shared})
}

func (q RegistrationQuery) matches(reg *Registration) bool {
	if q.Sharing != nil && reg.sharing != *q.Sharing {
		return false
	}

	if q.Lifetime != nil && reg.lifetime != *q.Lifetime {
		return false
	}

	if q.Ownership != nil && reg.ownership != *q.Ownership {
		return false
	}

	if q.Service != nil && !providesType(reg, q.Service) {
		return false
	}

	for key, want := range q.Metadata {
		got, ok := reg.metadata[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}

	return true
}

func providesType(reg *Registration, t reflect.Type) bool {
	for _, svc := range reg.services {
		if svc.Type == t {
			return true
		}
	}

	return false
}
