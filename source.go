package keel

// RegistrationSource synthesizes registrations on demand for services that
// have no direct registration, such as closed generic types or wrapper types
// like *Lazy[T]. Sources are stateless: synthesized registrations are never
// added to the registry, and each lookup asks again.
type RegistrationSource interface {
	// RegistrationsFor returns registrations providing svc. lookup queries the
	// registry the source was consulted from, so a source can build on
	// existing registrations.
	RegistrationsFor(svc Service, lookup func(Service) []*Registration) []*Registration

	// IsAdapterForIndividualComponents reports whether the source adapts one
	// existing registration per synthesized registration. Results of adapter
	// sources are combined with later sources; the first other source that
	// returns results ends the search.
	IsAdapterForIndividualComponents() bool
}

// SourceFunc adapts a function to a non-adapter RegistrationSource.
type SourceFunc func(svc Service, lookup func(Service) []*Registration) []*Registration

// RegistrationsFor implements RegistrationSource.
func (f SourceFunc) RegistrationsFor(svc Service, lookup func(Service) []*Registration) []*Registration {
	return f(svc, lookup)
}

// IsAdapterForIndividualComponents implements RegistrationSource.
func (SourceFunc) IsAdapterForIndividualComponents() bool {
	return false
}
