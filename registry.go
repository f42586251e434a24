package keel

import (
	"sync"
)

// Registry maps services to registrations. A registry may layer over a parent:
// lookups see the parent's registrations first and this layer's last, so a
// registration added in a child scope becomes the default for its services.
//
// Registrations are only added while the registry is being built. Once frozen
// the registry is read-only and safe for concurrent lookups.
type Registry struct {
	parent        *Registry
	services      map[Service][]*Registration
	registrations []*Registration
	ids           map[ID]struct{}
	synthesized   sync.Map // ID -> struct{}, registrations built by this layer's sources
	sources       []RegistrationSource
	frozen        bool
	mu            sync.RWMutex
}

// NewRegistry creates an empty registry layered over parent, which may be nil.
func NewRegistry(parent *Registry) *Registry {
	return &Registry{
		parent:   parent,
		services: make(map[Service][]*Registration),
		ids:      make(map[ID]struct{}),
	}
}

// Parent returns the registry this layer extends, or nil.
func (r *Registry) Parent() *Registry {
	return r.parent
}

// Register adds reg under every service it provides.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil {
		return NewArgumentError("registration", "cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewArgumentError("registration", "registry is already built")
	}

	for _, svc := range reg.services {
		r.services[svc] = append(r.services[svc], reg)
	}

	r.registrations = append(r.registrations, reg)
	r.ids[reg.id] = struct{}{}

	return nil
}

// AddRegistrationSource adds a source consulted for services with no direct
// registration. Sources are consulted in the order they were added.
func (r *Registry) AddRegistrationSource(src RegistrationSource) error {
	if src == nil {
		return NewArgumentError("source", "cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewArgumentError("source", "registry is already built")
	}

	r.sources = append(r.sources, src)

	return nil
}

// Lookup returns every registration that provides svc, the default last.
// When no registration provides svc directly the registration sources are
// asked to synthesize candidates. An empty result is not an error.
func (r *Registry) Lookup(svc Service) []*Registration {
	if direct := r.direct(svc); len(direct) > 0 {
		return direct
	}

	var found []*Registration

	for _, ls := range r.layeredSources() {
		regs := ls.source.RegistrationsFor(svc, r.Lookup)
		if len(regs) == 0 {
			continue
		}

		for _, reg := range regs {
			ls.layer.synthesized.Store(reg.id, struct{}{})
		}

		found = append(found, regs...)

		if !ls.source.IsAdapterForIndividualComponents() {
			break
		}
	}

	return found
}

// IsRegistered reports whether Lookup would return at least one registration.
func (r *Registry) IsRegistered(svc Service) bool {
	return len(r.Lookup(svc)) > 0
}

// Registrations returns every explicit registration, parent layers first.
func (r *Registry) Registrations() []*Registration {
	var out []*Registration
	if r.parent != nil {
		out = r.parent.Registrations()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append(out, r.registrations...)
}

// Sources returns the registration sources in consultation order: this
// layer's sources first, then the parent's.
func (r *Registry) Sources() []RegistrationSource {
	return r.allSources()
}

func (r *Registry) direct(svc Service) []*Registration {
	var out []*Registration
	if r.parent != nil {
		out = r.parent.direct(svc)
	}

	r.mu.RLock()
	local := r.services[svc]
	r.mu.RUnlock()

	if len(local) == 0 {
		return out
	}

	return append(out, local...)
}

func (r *Registry) allSources() []RegistrationSource {
	layered := r.layeredSources()

	out := make([]RegistrationSource, len(layered))
	for i, ls := range layered {
		out[i] = ls.source
	}

	return out
}

// layeredSource is a registration source and the layer that added it.
type layeredSource struct {
	source RegistrationSource
	layer  *Registry
}

func (r *Registry) layeredSources() []layeredSource {
	r.mu.RLock()
	out := make([]layeredSource, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, layeredSource{source: src, layer: r})
	}
	r.mu.RUnlock()

	if r.parent != nil {
		out = append(out, r.parent.layeredSources()...)
	}

	return out
}

// declares reports whether reg was registered in this layer or synthesized
// by one of its sources.
func (r *Registry) declares(reg *Registration) bool {
	r.mu.RLock()
	_, ok := r.ids[reg.id]
	r.mu.RUnlock()

	if ok {
		return true
	}

	_, ok = r.synthesized.Load(reg.id)

	return ok
}

func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}
