package modeling

import "testing"

func TestStoreResolvePrefersAccessContext(t *testing.T) {
	s := NewStore()
	s.Add(FromMmioContext(NewMmioContext(0x4000_1000)), NewConstantModel(1))
	s.Add(FromAccessContext(NewAccessContext(0x100, 0x4000_1000)), NewConstantModel(2))

	m, ok := s.Resolve(0x100, 0x4000_1000)
	if !ok {
		t.Fatal("expected a resolved model")
	}
	if m.Constant != 2 {
		t.Fatalf("want access-scoped model (constant=2), got %+v", m)
	}

	m, ok = s.Resolve(0x999, 0x4000_1000)
	if !ok {
		t.Fatal("expected a resolved model from a different call site")
	}
	if m.Constant != 1 {
		t.Fatalf("want address-scoped fallback model (constant=1), got %+v", m)
	}
}

func TestStoreResolveMissReturnsFalse(t *testing.T) {
	s := NewStore()
	if _, ok := s.Resolve(0x100, 0x4000_1000); ok {
		t.Fatal("expected no model for an empty store")
	}
}

func TestStoreAddOverwritesSameContext(t *testing.T) {
	s := NewStore()
	ctx := FromAccessContext(NewAccessContext(0x100, 0x4000_1000))
	s.Add(ctx, NewConstantModel(1))
	s.Add(ctx, NewConstantModel(2))

	if s.Len() != 1 {
		t.Fatalf("want a single entry after overwrite, got %d", s.Len())
	}
	m, _ := s.Resolve(0x100, 0x4000_1000)
	if m.Constant != 2 {
		t.Fatalf("want overwritten model (constant=2), got %+v", m)
	}
}

func TestStoreAllIsDeterministicallyOrdered(t *testing.T) {
	s := NewStore()
	s.Add(FromAccessContext(NewAccessContext(0x300, 0x1)), NewConstantModel(1))
	s.Add(FromAccessContext(NewAccessContext(0x100, 0x2)), NewConstantModel(2))
	s.Add(FromMmioContext(NewMmioContext(0x3)), NewConstantModel(3))

	a := s.All()
	b := s.All()
	if len(a) != len(b) {
		t.Fatal("All() should return a stable count across calls")
	}
	for i := range a {
		if a[i].Context.String() != b[i].Context.String() {
			t.Fatalf("All() ordering is not stable at index %d", i)
		}
	}
	for i := 1; i < len(a); i++ {
		if a[i].Context.String() < a[i-1].Context.String() {
			t.Fatalf("All() is not sorted: %q before %q", a[i-1].Context, a[i].Context)
		}
	}
}
