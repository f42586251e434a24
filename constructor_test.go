package keel

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedFields struct {
	Primary *testDB `key:"primary"`
	Cache   *testCache
	Skipped *testDB `keel:"-"`
	Renamed *memStore `keel:"store,optional"`
	private *testDB
}

type counterValue int

func TestNewConstructor(t *testing.T) {
	ctor, err := NewConstructor(func(db *testDB, name string) (*testCache, error) {
		return &testCache{DB: db}, nil
	}, "db")
	require.NoError(t, err)

	params := ctor.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, ParameterInfo{Name: "db", Type: typeOf[*testDB](), Position: 0}, params[0])
	assert.Equal(t, ParameterInfo{Name: "p1", Type: typeOf[string](), Position: 1}, params[1])
	assert.Equal(t, typeOf[*testCache](), ctor.ResultType())
	assert.False(t, ctor.IsPrivate())
	assert.True(t, ctor.Private().IsPrivate())

	instance, err := ctor.call([]reflect.Value{reflect.ValueOf(&testDB{dsn: "x"}), reflect.ValueOf("n")})
	require.NoError(t, err)
	assert.Equal(t, "x", instance.(*testCache).DB.dsn)
}

func TestNewConstructor_Validation(t *testing.T) {
	tests := []struct {
		name  string
		fn    any
		names []string
	}{
		{name: "nil", fn: nil},
		{name: "not a function", fn: 42},
		{name: "no results", fn: func() {}},
		{name: "too many results", fn: func() (int, int, error) { return 0, 0, nil }},
		{name: "second result not error", fn: func() (int, int) { return 0, 0 }},
		{name: "too many names", fn: func(int) int { return 0 }, names: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConstructor(tt.fn, tt.names...)
			assert.ErrorIs(t, err, ErrArgumentInvalid)
		})
	}

	assert.Panics(t, func() { Ctor("nope") })
}

func TestConstructor_ReturnsError(t *testing.T) {
	failure := errors.New("refused")

	ctor := Ctor(func() (*testDB, error) { return nil, failure })

	_, err := ctor.call(nil)
	assert.ErrorIs(t, err, failure)
}

func TestDefaultConstructorFinder_DerivesFromFields(t *testing.T) {
	ctors := DefaultConstructorFinder.FindConstructors(typeOf[*taggedFields]())
	require.Len(t, ctors, 1)

	params := ctors[0].Parameters()
	require.Len(t, params, 3)

	assert.Equal(t, "Primary", params[0].Name)
	assert.Equal(t, "primary", params[0].Key)
	assert.Equal(t, "Cache", params[1].Name)
	assert.Equal(t, "store", params[2].Name)
	assert.Equal(t, 2, params[2].Position)

	db := &testDB{}
	instance, err := ctors[0].call([]reflect.Value{
		reflect.ValueOf(db),
		reflect.ValueOf(&testCache{}),
		reflect.ValueOf(&memStore{}),
	})
	require.NoError(t, err)

	tf := instance.(*taggedFields)
	assert.Same(t, db, tf.Primary)
	assert.Nil(t, tf.Skipped)
	assert.Nil(t, tf.private)

	// Derived tables are cached per type.
	again := DefaultConstructorFinder.FindConstructors(typeOf[*taggedFields]())
	assert.Equal(t, len(ctors), len(again))
}

func TestDefaultConstructorFinder_ValueStruct(t *testing.T) {
	ctors := DefaultConstructorFinder.FindConstructors(typeOf[testCache]())
	require.Len(t, ctors, 1)

	instance, err := ctors[0].call([]reflect.Value{reflect.ValueOf(&testDB{dsn: "v"})})
	require.NoError(t, err)

	value, ok := instance.(testCache)
	require.True(t, ok)
	assert.Equal(t, "v", value.DB.dsn)
}

func TestDefaultConstructorFinder_OtherKinds(t *testing.T) {
	assert.Empty(t, DefaultConstructorFinder.FindConstructors(typeOf[testStore]()))
	assert.Empty(t, DefaultConstructorFinder.FindConstructors(nil))

	ptrCtors := DefaultConstructorFinder.FindConstructors(typeOf[*counterValue]())
	require.Len(t, ptrCtors, 1)

	instance, err := ptrCtors[0].call(nil)
	require.NoError(t, err)
	require.IsType(t, (*counterValue)(nil), instance)
	assert.NotNil(t, instance)

	valueCtors := DefaultConstructorFinder.FindConstructors(typeOf[counterValue]())
	require.Len(t, valueCtors, 1)

	zero, err := valueCtors[0].call(nil)
	require.NoError(t, err)
	assert.Equal(t, counterValue(0), zero)
}

func TestDefaultConstructorFinder_UsesProvidedTable(t *testing.T) {
	ctors := DefaultConstructorFinder.FindConstructors(typeOf[*hiddenCtor]())
	require.Len(t, ctors, 1)
	assert.Empty(t, ctors[0].Parameters())

	// The table is looked up on the pointer for value types too.
	assert.Len(t, DefaultConstructorFinder.FindConstructors(typeOf[multiCtor]()), 3)
}

func TestStaticConstructors_DropsPrivate(t *testing.T) {
	finder := StaticConstructors(
		Ctor(func() *testDB { return &testDB{} }).Private(),
		Ctor(func(dsn string) *testDB { return &testDB{dsn: dsn} }, "dsn"),
	)

	ctors := finder.FindConstructors(typeOf[*testDB]())
	require.Len(t, ctors, 1)
	assert.Equal(t, "dsn", ctors[0].Parameters()[0].Name)
}

func TestUsingConstructors_NamedParameter(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*testDB](b,
			UsingConstructors(Ctor(func(dsn string) *testDB { return &testDB{dsn: dsn} }, "dsn")),
			WithParameter(NamedParameter("dsn", "postgres://configured")),
		)
		require.NoError(t, err)
	})

	db, err := Resolve[*testDB](c)
	require.NoError(t, err)
	assert.Equal(t, "postgres://configured", db.dsn)
}

func TestFieldConstructor_KeyedAutowiring(t *testing.T) {
	type reports struct {
		DB *testDB `key:"replica"`
	}

	c := newTestContainer(t, func(b *Builder) {
		_, err := b.RegisterInstance(&testDB{dsn: "default"})
		require.NoError(t, err)

		_, err = b.RegisterInstance(&testDB{dsn: "replica"}, AsNamed[*testDB]("replica"))
		require.NoError(t, err)

		_, err = RegisterTypeOf[*reports](b)
		require.NoError(t, err)
	})

	r, err := Resolve[*reports](c)
	require.NoError(t, err)
	assert.Equal(t, "replica", r.DB.dsn)
}
