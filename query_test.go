package keel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildQueryRegistry(t *testing.T) (*Registry, map[string]*Registration) {
	t.Helper()

	b := NewBuilder()
	regs := make(map[string]*Registration)

	var err error

	regs["db"], err = RegisterTypeOf[*testDB](b, SingleInstance(), WithMetadata("layer", "storage"))
	require.NoError(t, err)

	regs["mem"], err = b.RegisterInstance(&memStore{}, AsType[testStore](), ExternallyOwned(), WithMetadata("layer", "storage"))
	require.NoError(t, err)

	regs["disk"], err = RegisterTypeOf[*diskStore](b, AsNamed[testStore]("disk"), InstancePerLifetimeScope())
	require.NoError(t, err)

	regs["cache"], err = RegisterTypeOf[*testCache](b, WithMetadata("layer", "cache"))
	require.NoError(t, err)

	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Dispose() })

	return c.Registry(), regs
}

func TestQuery_ByService(t *testing.T) {
	r, regs := buildQueryRegistry(t)

	stores := FindByService(r, typeOf[testStore]())
	assert.Equal(t, []*Registration{regs["mem"], regs["disk"]}, stores)

	assert.Empty(t, FindByService(r, typeOf[*closer]()))
}

func TestQuery_ByMetadata(t *testing.T) {
	r, regs := buildQueryRegistry(t)

	storage := FindByMetadata(r, "layer", "storage")
	assert.Equal(t, []*Registration{regs["db"], regs["mem"]}, storage)

	assert.Empty(t, FindByMetadata(r, "layer", "network"))
}

func TestQuery_Shared(t *testing.T) {
	r, regs := buildQueryRegistry(t)

	assert.Equal(t, []*Registration{regs["db"], regs["mem"], regs["disk"]}, FindShared(r))
}

func TestQuery_CombinedCriteria(t *testing.T) {
	r, regs := buildQueryRegistry(t)

	root := LifetimeRootScope
	external := OwnershipExternal

	ids := QueryIDs(r, RegistrationQuery{
		Lifetime:  &root,
		Ownership: &external,
		Metadata:  map[string]any{"layer": "storage"},
	})
	assert.Equal(t, []ID{regs["mem"].ID()}, ids)

	none := SharingNone
	assert.Equal(t, []*Registration{regs["cache"]}, Query(r, RegistrationQuery{Sharing: &none}))

	assert.Len(t, Query(r, RegistrationQuery{}), 4)
}

func TestQuery_IncludesParentLayers(t *testing.T) {
	r, regs := buildQueryRegistry(t)

	child := NewRegistry(r)
	local, err := NewRegistration("", mustInstanceActivator(t, &testDB{}), WithMetadata("layer", "storage"))
	require.NoError(t, err)
	require.NoError(t, child.Register(local))

	assert.Equal(t, []*Registration{regs["db"], regs["mem"], local}, FindByMetadata(child, "layer", "storage"))
}

func mustInstanceActivator(t *testing.T, instance any) *InstanceActivator {
	t.Helper()

	a, err := NewInstanceActivator(instance)
	require.NoError(t, err)

	return a
}
