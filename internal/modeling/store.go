package modeling

import "sort"

// Store holds the MMIO models known for a target, keyed by context, and
// resolves a read at a given (pc, addr) down to the model that should
// answer it.
//
// Resolution prefers the most specific context: a model registered against
// the exact (pc, addr) access site wins over one registered against the
// bare address. This lets an import (or a hand-written config) model one
// call site differently from another that touches the same register.
type Store struct {
	byAccess map[AccessContext]MmioModel
	byMmio   map[MmioContext]MmioModel
}

// NewStore returns an empty model store.
func NewStore() *Store {
	return &Store{
		byAccess: make(map[AccessContext]MmioModel),
		byMmio:   make(map[MmioContext]MmioModel),
	}
}

// Add registers m under ctx, overwriting any prior model for the same
// context.
func (s *Store) Add(ctx ModelContext, m MmioModel) {
	if ctx.HasPC() {
		s.byAccess[AccessContext{PC: ctx.PC(), MMIO: ctx.Mmio()}] = m
	} else {
		s.byMmio[ctx.Mmio()] = m
	}
}

// Resolve looks up the model that should answer a read at addr issued from
// pc. It returns the model and true if one was found, preferring an
// access-site-specific model over an address-only one.
func (s *Store) Resolve(pc, addr Address) (MmioModel, bool) {
	m, _, ok := s.ResolveContext(pc, addr)
	return m, ok
}

// ResolveContext is Resolve plus the specific ModelContext the match was
// registered under, so a caller consuming a per-context replay stream reads
// from the same key the model store used, rather than always the
// access-site-specific one.
func (s *Store) ResolveContext(pc, addr Address) (MmioModel, ModelContext, bool) {
	access := AccessContext{PC: pc, MMIO: NewMmioContext(addr)}
	if m, ok := s.byAccess[access]; ok {
		return m, FromAccessContext(access), true
	}
	if m, ok := s.byMmio[NewMmioContext(addr)]; ok {
		return m, FromMmioContext(NewMmioContext(addr)), true
	}
	return MmioModel{}, ModelContext{}, false
}

// Len returns the total number of registered models.
func (s *Store) Len() int {
	return len(s.byAccess) + len(s.byMmio)
}

// All returns every (context, model) pair, sorted by string context for
// deterministic iteration (e.g. when re-exporting models to YAML).
func (s *Store) All() []Mmio {
	out := make([]Mmio, 0, s.Len())
	for ctx, m := range s.byAccess {
		out = append(out, Mmio{Context: FromAccessContext(ctx), Model: modelPtr(m)})
	}
	for ctx, m := range s.byMmio {
		out = append(out, Mmio{Context: FromMmioContext(ctx), Model: modelPtr(m)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Context.String() < out[j].Context.String()
	})
	return out
}

func modelPtr(m MmioModel) *MmioModel {
	return &m
}
