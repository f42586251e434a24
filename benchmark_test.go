package keel

import (
	"testing"
)

func benchmarkContainer(b *testing.B, opts ...RegisterOption) *Container {
	b.Helper()

	builder := NewBuilder()
	if _, err := RegisterTypeOf[*testDB](builder, SingleInstance()); err != nil {
		b.Fatal(err)
	}

	if _, err := RegisterTypeOf[*testCache](builder, opts...); err != nil {
		b.Fatal(err)
	}

	c, err := builder.Build()
	if err != nil {
		b.Fatal(err)
	}

	b.Cleanup(func() { _ = c.Dispose() })

	return c
}

func BenchmarkResolve_Shared(b *testing.B) {
	c := benchmarkContainer(b, SingleInstance())

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Resolve[*testCache](c); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolve_PerDependency(b *testing.B) {
	c := benchmarkContainer(b)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Resolve[*testCache](c); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolve_Parallel(b *testing.B) {
	c := benchmarkContainer(b, SingleInstance())

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := Resolve[*testCache](c); err != nil {
				b.Error(err)

				return
			}
		}
	})
}

func BenchmarkLifetimeScope_BeginResolveDispose(b *testing.B) {
	c := benchmarkContainer(b, InstancePerLifetimeScope())

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		scope, err := c.BeginLifetimeScope()
		if err != nil {
			b.Fatal(err)
		}

		if _, err := Resolve[*testCache](scope); err != nil {
			b.Fatal(err)
		}

		if err := scope.Dispose(); err != nil {
			b.Fatal(err)
		}
	}
}
