package keel

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Constructor describes one way of building a type: an ordered list of
// parameter slots and the function invoked with the bound arguments.
type Constructor struct {
	params  []ParameterInfo
	result  reflect.Type
	invoke  func(args []reflect.Value) (any, error)
	private bool
}

// Parameters returns the slots of the constructor in position order.
func (c Constructor) Parameters() []ParameterInfo {
	return append([]ParameterInfo(nil), c.params...)
}

// ResultType returns the type the constructor produces.
func (c Constructor) ResultType() reflect.Type {
	return c.result
}

// Private returns a copy of c that the default finders do not consider invokable.
func (c Constructor) Private() Constructor {
	c.private = true

	return c
}

// IsPrivate reports whether c is hidden from the default finders.
func (c Constructor) IsPrivate() bool {
	return c.private
}

// NewConstructor derives a descriptor from a Go function returning (T) or
// (T, error). names label the parameters in order; unnamed parameters are
// called p0, p1, ...
//
// Example:
//
//	ctor, err := NewConstructor(func(db *Database, ttl time.Duration) *Cache {
//	    return &Cache{db: db, ttl: ttl}
//	}, "db", "ttl")
func NewConstructor(fn any, names ...string) (Constructor, error) {
	if fn == nil {
		return Constructor{}, NewArgumentError("constructor", "cannot be nil")
	}

	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return Constructor{}, NewArgumentError("constructor", "must be a function")
	}

	if fnType.NumOut() == 0 || fnType.NumOut() > 2 {
		return Constructor{}, NewArgumentError("constructor", "must return (T) or (T, error)")
	}

	hasError := fnType.NumOut() == 2
	if hasError && !fnType.Out(1).Implements(errorType) {
		return Constructor{}, NewArgumentError("constructor", "second return value must implement error")
	}

	if len(names) > fnType.NumIn() {
		return Constructor{}, NewArgumentError("names",
			fmt.Sprintf("%d names given for %d parameters", len(names), fnType.NumIn()))
	}

	params := make([]ParameterInfo, fnType.NumIn())
	for i := range params {
		name := "p" + strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}

		params[i] = ParameterInfo{Name: name, Type: fnType.In(i), Position: i}
	}

	return Constructor{
		params: params,
		result: fnType.Out(0),
		invoke: func(args []reflect.Value) (any, error) {
			var results []reflect.Value
			if fnType.IsVariadic() {
				results = fnValue.CallSlice(args)
			} else {
				results = fnValue.Call(args)
			}

			if hasError && !results[1].IsNil() {
				return nil, results[1].Interface().(error)
			}

			instance := results[0].Interface()
			if isNil(instance) {
				return nil, errNilInstance
			}

			return instance, nil
		},
	}, nil
}

// Ctor is like NewConstructor but panics on an invalid function. It is meant
// for static descriptor tables.
func Ctor(fn any, names ...string) Constructor {
	c, err := NewConstructor(fn, names...)
	if err != nil {
		panic(err)
	}

	return c
}

// call invokes the constructor, converting a panic into an error.
func (c Constructor) call(args []reflect.Value) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor for %s panicked: %v", typeName(c.result), r)
		}
	}()

	return c.invoke(args)
}

// ConstructorProvider is implemented by types that publish their own
// descriptor table. The method is looked up on a pointer to the type, so
// generic types can describe the constructors of each instantiation:
//
//	func (*Repository[T]) Constructors() []keel.Constructor {
//	    return []keel.Constructor{keel.Ctor(NewRepository[T], "store")}
//	}
type ConstructorProvider interface {
	Constructors() []Constructor
}

// ConstructorFinder returns the invokable constructors of a type.
type ConstructorFinder interface {
	FindConstructors(t reflect.Type) []Constructor
}

// ConstructorFinderFunc adapts a function to the ConstructorFinder interface.
type ConstructorFinderFunc func(t reflect.Type) []Constructor

// FindConstructors implements ConstructorFinder.
func (f ConstructorFinderFunc) FindConstructors(t reflect.Type) []Constructor {
	return f(t)
}

// DefaultConstructorFinder uses a type's ConstructorProvider table when it has
// one, and otherwise derives a constructor from the type's shape. Private
// constructors are never returned.
var DefaultConstructorFinder ConstructorFinder = ConstructorFinderFunc(func(t reflect.Type) []Constructor {
	if t == nil {
		return nil
	}

	if ctors, ok := providedConstructors(t); ok {
		return publicConstructors(ctors)
	}

	return publicConstructors(derivedConstructors(t))
})

// StaticConstructors returns a finder that always offers ctors, in order.
func StaticConstructors(ctors ...Constructor) ConstructorFinder {
	ctors = publicConstructors(ctors)

	return ConstructorFinderFunc(func(reflect.Type) []Constructor {
		return ctors
	})
}

func publicConstructors(ctors []Constructor) []Constructor {
	out := make([]Constructor, 0, len(ctors))
	for _, c := range ctors {
		if !c.private {
			out = append(out, c)
		}
	}

	return out
}

func providedConstructors(t reflect.Type) ([]Constructor, bool) {
	var probe reflect.Value
	if t.Kind() == reflect.Ptr {
		probe = reflect.New(t.Elem())
	} else {
		probe = reflect.New(t)
	}

	provider, ok := probe.Interface().(ConstructorProvider)
	if !ok {
		return nil, false
	}

	return provider.Constructors(), true
}

var derivedCache sync.Map // reflect.Type -> []Constructor

// derivedConstructors builds the descriptor table of a type without a
// ConstructorProvider. Structs (and pointers to structs) get one constructor
// whose parameters are the exported fields not tagged `keel:"-"`. Other
// non-interface types get a zero-value constructor.
func derivedConstructors(t reflect.Type) []Constructor {
	if cached, ok := derivedCache.Load(t); ok {
		return cached.([]Constructor)
	}

	var ctors []Constructor

	switch {
	case t.Kind() == reflect.Interface:
		ctors = nil
	case t.Kind() == reflect.Struct || t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		ctors = []Constructor{fieldConstructor(t)}
	case t.Kind() == reflect.Ptr:
		ctors = []Constructor{{result: t, invoke: func([]reflect.Value) (any, error) {
			return reflect.New(t.Elem()).Interface(), nil
		}}}
	default:
		ctors = []Constructor{{result: t, invoke: func([]reflect.Value) (any, error) {
			return reflect.Zero(t).Interface(), nil
		}}}
	}

	actual, _ := derivedCache.LoadOrStore(t, ctors)

	return actual.([]Constructor)
}

func fieldConstructor(t reflect.Type) Constructor {
	isPtr := t.Kind() == reflect.Ptr

	st := t
	if isPtr {
		st = t.Elem()
	}

	var (
		params []ParameterInfo
		index  []int
	)

	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}

		name, skip := fieldTag(field)
		if skip {
			continue
		}

		params = append(params, ParameterInfo{
			Name:     name,
			Type:     field.Type,
			Position: len(params),
			Key:      field.Tag.Get("key"),
		})
		index = append(index, i)
	}

	return Constructor{
		params: params,
		result: t,
		invoke: func(args []reflect.Value) (any, error) {
			ptr := reflect.New(st)
			for i, arg := range args {
				ptr.Elem().Field(index[i]).Set(arg)
			}

			if isPtr {
				return ptr.Interface(), nil
			}

			return ptr.Elem().Interface(), nil
		},
	}
}

// fieldTag returns the slot name of a struct field and whether it is excluded.
func fieldTag(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("keel")
	if tag == "-" {
		return "", true
	}

	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}

	return f.Name, false
}

// property is a settable member of an activated instance.
type property struct {
	info  ParameterInfo
	field reflect.Value
}

// settableProperties lists the exported, settable fields of a pointer-to-struct instance.
func settableProperties(instance any) []property {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	st := v.Elem()
	t := st.Type()

	props := make([]property, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || !st.Field(i).CanSet() {
			continue
		}

		props = append(props, property{
			info: ParameterInfo{
				Name:     field.Name,
				Type:     field.Type,
				Position: i,
				Key:      field.Tag.Get("key"),
				Property: true,
			},
			field: st.Field(i),
		})
	}

	return props
}
