package keel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type depA struct {
	id int
}

type depB struct {
	id int
}

// multiCtor offers constructors with 0, 1 and 2 parameters.
type multiCtor struct {
	a    *depA
	b    *depB
	used int
}

func (*multiCtor) Constructors() []Constructor {
	return []Constructor{
		Ctor(func() *multiCtor { return &multiCtor{used: 0} }),
		Ctor(func(a *depA) *multiCtor { return &multiCtor{a: a, used: 1} }, "a"),
		Ctor(func(a *depA, b *depB) *multiCtor { return &multiCtor{a: a, b: b, used: 2} }, "a", "b"),
	}
}

// tiedCtor has two bindable constructors with the same number of parameters.
type tiedCtor struct {
	from string
}

func (*tiedCtor) Constructors() []Constructor {
	return []Constructor{
		Ctor(func(*depA) *tiedCtor { return &tiedCtor{from: "a"} }, "a"),
		Ctor(func(*depB) *tiedCtor { return &tiedCtor{from: "b"} }, "b"),
	}
}

type hiddenCtor struct {
	used string
}

func (*hiddenCtor) Constructors() []Constructor {
	return []Constructor{
		Ctor(func() *hiddenCtor { return &hiddenCtor{used: "public"} }),
		Ctor(func(*depA) *hiddenCtor { return &hiddenCtor{used: "private"} }, "a").Private(),
	}
}

type settings struct {
	port    int
	timeout float64
	name    string
}

func (*settings) Constructors() []Constructor {
	return []Constructor{
		Ctor(func(port int, timeout float64, name string) *settings {
			return &settings{port: port, timeout: timeout, name: name}
		}, "port", "timeout", "name"),
	}
}

type panicky struct {
	id int
}

func (*panicky) Constructors() []Constructor {
	return []Constructor{
		Ctor(func() *panicky { panic("broken constructor") }),
	}
}

type withProperties struct {
	Name  string
	Cache *testCache
	DB    *testDB
	id    int
}

func (*withProperties) Constructors() []Constructor {
	return []Constructor{
		Ctor(func() *withProperties { return &withProperties{id: 1} }),
	}
}

func TestReflectionActivator_PicksMostParameters(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*depA](b)
		require.NoError(t, err)

		_, err = RegisterTypeOf[*depB](b)
		require.NoError(t, err)

		_, err = RegisterTypeOf[*multiCtor](b)
		require.NoError(t, err)
	})

	m, err := Resolve[*multiCtor](c)
	require.NoError(t, err)
	assert.Equal(t, 2, m.used)
	assert.NotNil(t, m.a)
	assert.NotNil(t, m.b)
}

func TestReflectionActivator_SkipsUnbindableConstructors(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*depA](b)
		require.NoError(t, err)

		_, err = RegisterTypeOf[*multiCtor](b)
		require.NoError(t, err)
	})

	m, err := Resolve[*multiCtor](c)
	require.NoError(t, err)
	assert.Equal(t, 1, m.used)
	assert.Nil(t, m.b)
}

func TestReflectionActivator_ParametersSatisfyConstructors(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*multiCtor](b)
		require.NoError(t, err)
	})

	m, err := Resolve[*multiCtor](c,
		TypedParameterOf(&depA{id: 1}),
		NamedParameter("b", &depB{id: 2}),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, m.used)
	assert.Equal(t, 1, m.a.id)
	assert.Equal(t, 2, m.b.id)
}

func TestReflectionActivator_TieGoesToFirstConstructor(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*depA](b)
		require.NoError(t, err)

		_, err = RegisterTypeOf[*depB](b)
		require.NoError(t, err)

		_, err = RegisterTypeOf[*tiedCtor](b)
		require.NoError(t, err)
	})

	tied, err := Resolve[*tiedCtor](c)
	require.NoError(t, err)
	assert.Equal(t, "a", tied.from)
}

func TestReflectionActivator_PrivateConstructorsIgnored(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*depA](b)
		require.NoError(t, err)

		_, err = RegisterTypeOf[*hiddenCtor](b)
		require.NoError(t, err)
	})

	h, err := Resolve[*hiddenCtor](c)
	require.NoError(t, err)
	assert.Equal(t, "public", h.used)
}

func TestReflectionActivator_NoBindableConstructor(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*testCache](b)
		require.NoError(t, err)
	})

	_, err := Resolve[*testCache](c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyResolution)
	assert.Contains(t, err.Error(), "*keel.testCache")
	assert.Contains(t, err.Error(), "*keel.testDB")
}

func TestReflectionActivator_NoConstructors(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*testDB](b, WithConstructorFinder(StaticConstructors()))
		require.NoError(t, err)
	})

	_, err := Resolve[*testDB](c)
	assert.ErrorIs(t, err, ErrDependencyResolution)
	assert.Contains(t, err.Error(), "no invokable constructors")
}

func TestReflectionActivator_ValueConversion(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*settings](b,
			WithParameter(NamedParameter("port", int32(8080))),
			WithParameter(NamedParameter("timeout", 3)),
			WithParameter(NamedParameter("name", nil)),
		)
		require.NoError(t, err)
	})

	s, err := Resolve[*settings](c)
	require.NoError(t, err)
	assert.Equal(t, 8080, s.port)
	assert.InDelta(t, 3.0, s.timeout, 0.0001)
	assert.Equal(t, "", s.name)
}

func TestReflectionActivator_IntegerIsNotConvertedToString(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*settings](b,
			WithParameter(NamedParameter("port", 1)),
			WithParameter(NamedParameter("timeout", 1.5)),
			WithParameter(NamedParameter("name", 65)),
		)
		require.NoError(t, err)
	})

	_, err := Resolve[*settings](c)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestReflectionActivator_CallerParametersWin(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*settings](b,
			WithParameter(PositionalParameter(0, 1)),
			WithParameter(TypedParameterOf(1.5)),
			WithParameter(NamedParameter("name", "configured")),
		)
		require.NoError(t, err)
	})

	s, err := Resolve[*settings](c, NamedParameter("name", "caller"))
	require.NoError(t, err)
	assert.Equal(t, "caller", s.name)
	assert.Equal(t, 1, s.port)
}

func TestReflectionActivator_ConstructorPanicIsActivationFailure(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*panicky](b)
		require.NoError(t, err)
	})

	_, err := Resolve[*panicky](c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActivationFailed)
	assert.Contains(t, err.Error(), "broken constructor")
}

func TestReflectionActivator_ConstructorError(t *testing.T) {
	failure := errors.New("dial failed")

	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*testDB](b, UsingConstructors(
			Ctor(func() (*testDB, error) { return nil, failure }),
		))
		require.NoError(t, err)
	})

	_, err := Resolve[*testDB](c)
	assert.ErrorIs(t, err, ErrActivationFailed)
	assert.ErrorIs(t, err, failure)
}

func TestReflectionActivator_PropertyInjection(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*withProperties](b, WithProperty("Name", "configured"))
		require.NoError(t, err)
	})

	w, err := Resolve[*withProperties](c)
	require.NoError(t, err)
	assert.Equal(t, "configured", w.Name)
	assert.Nil(t, w.DB)

	w, err = Resolve[*withProperties](c, PropertyParameter("Name", "caller"))
	require.NoError(t, err)
	assert.Equal(t, "caller", w.Name)
}

func TestReflectionActivator_PropertyParameterIgnoresConstructorArguments(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*settings](b,
			WithParameter(PropertyParameter("port", 1)),
		)
		require.NoError(t, err)
	})

	_, err := Resolve[*settings](c)
	assert.ErrorIs(t, err, ErrDependencyResolution)
}

func TestReflectionActivator_PropertiesAutowired(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := b.RegisterInstance(&testDB{dsn: "auto"})
		require.NoError(t, err)

		_, err = RegisterTypeOf[*withProperties](b, PropertiesAutowired())
		require.NoError(t, err)
	})

	w, err := Resolve[*withProperties](c)
	require.NoError(t, err)
	require.NotNil(t, w.DB)
	assert.Equal(t, "auto", w.DB.dsn)

	// Unregistered property types are left alone.
	assert.Nil(t, w.Cache)
	assert.Equal(t, "", w.Name)
}

func TestDelegateActivator_NilInstance(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterFunc(b, func(ComponentContext) (*testDB, error) {
			return nil, nil
		})
		require.NoError(t, err)
	})

	_, err := Resolve[*testDB](c)
	assert.ErrorIs(t, err, ErrActivationFailed)
}

func TestReflectionActivator_NilInstance(t *testing.T) {
	tests := []struct {
		name string
		ctor Constructor
	}{
		{
			name: "nil pointer",
			ctor: Ctor(func() *testDB { return nil }),
		},
		{
			name: "nil pointer with error result",
			ctor: Ctor(func() (*testDB, error) { return nil, nil }),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContainer(t, func(b *Builder) {
				_, err := RegisterTypeOf[*testDB](b, UsingConstructors(tt.ctor))
				require.NoError(t, err)
			})

			_, err := Resolve[*testDB](c)
			assert.ErrorIs(t, err, ErrActivationFailed)
			assert.ErrorIs(t, err, errNilInstance)
		})
	}

	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterTypeOf[*memStore](b,
			AsType[testStore](),
			UsingConstructors(Ctor(func() testStore { return (*memStore)(nil) })),
		)
		require.NoError(t, err)
	})

	_, err := Resolve[testStore](c)
	assert.ErrorIs(t, err, errNilInstance)
}

func TestDelegateActivator_PanicIsActivationFailure(t *testing.T) {
	c := newTestContainer(t, func(b *Builder) {
		_, err := RegisterFunc(b, func(ComponentContext) (*testDB, error) {
			panic("factory exploded")
		})
		require.NoError(t, err)
	})

	_, err := Resolve[*testDB](c)
	assert.ErrorIs(t, err, ErrActivationFailed)
	assert.Contains(t, err.Error(), "factory exploded")
}

func TestNewActivators_RejectInvalidInput(t *testing.T) {
	_, err := NewInstanceActivator(nil)
	assert.ErrorIs(t, err, ErrArgumentInvalid)

	_, err = NewDelegateActivator(typeOf[*testDB](), nil)
	assert.ErrorIs(t, err, ErrArgumentInvalid)

	_, err = NewReflectionActivator(typeOf[testStore](), nil, nil, nil)
	assert.ErrorIs(t, err, ErrArgumentInvalid)

	_, err = NewReflectionActivator(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrArgumentInvalid)
}
