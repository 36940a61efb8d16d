package corpus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
)

// Corpus is the growing set of inputs the fuzzer has kept, each admitted
// because it exercised at least one feature (edge, hit-bucket) no prior
// input reached. It is the fuzzer loop's sole source of parents to mutate.
type Corpus struct {
	mu sync.Mutex

	inputs []*input.Input
	// seen is the union of every feature any admitted input has ever
	// produced, keyed by (edge, hit bucket). This never shrinks, even as
	// corpus membership does, so a feature once reached is never treated
	// as novel again regardless of which input demonstrated it.
	seen map[coverage.Feature]struct{}
	// features records, per admitted input still in the corpus, the
	// features it was admitted for — the per-input complement to seen,
	// needed to tell whether an input still uniquely explains anything.
	features map[uuid.UUID][]coverage.Feature
	// owners maps a feature to the set of corpus members (by ID) still
	// demonstrating it, so demote can find inputs whose every feature has
	// become redundant once a new input is admitted.
	owners map[coverage.Feature]map[uuid.UUID]struct{}
}

// New returns an empty corpus.
func New() *Corpus {
	return &Corpus{
		seen:     make(map[coverage.Feature]struct{}),
		features: make(map[uuid.UUID][]coverage.Feature),
		owners:   make(map[coverage.Feature]map[uuid.UUID]struct{}),
	}
}

// IsNovel reports whether features contains at least one feature not
// already covered by any previously admitted input. Does not mutate corpus
// state; call Admit to record the features once the caller has decided to
// keep the input.
func (c *Corpus) IsNovel(features []coverage.Feature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range features {
		if _, ok := c.seen[f]; !ok {
			return true
		}
	}
	return false
}

// Admit adds in to the corpus and folds features into the seen set. The
// caller is expected to have already checked IsNovel (or otherwise decided
// admission is warranted, e.g. for initial seeds) before calling Admit.
//
// Admitting in can make an earlier input redundant: if every feature that
// input once uniquely demonstrated is now also demonstrated by in (or by
// some other still-present input), the earlier one is demoted — dropped
// from the corpus, though never from seen, since seen tracks what has ever
// been reached, not what the corpus currently holds. Crash-categorized
// inputs never reach Admit (they are archived directly from the crash
// path), so the "unless it carries a crash category" exception to demotion
// never applies here.
func (c *Corpus) Admit(in *input.Input, features []coverage.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inputs = append(c.inputs, in)
	c.features[in.ID] = append([]coverage.Feature(nil), features...)
	for _, f := range features {
		c.seen[f] = struct{}{}
		if c.owners[f] == nil {
			c.owners[f] = make(map[uuid.UUID]struct{})
		}
		c.owners[f][in.ID] = struct{}{}
	}

	c.demote(in.ID)
}

// demote drops every corpus member other than keepID whose entire feature
// set is now shared with at least one other surviving member, i.e. that no
// longer uniquely explains any feature's presence in the corpus.
func (c *Corpus) demote(keepID uuid.UUID) {
	var dead []uuid.UUID
	for _, in := range c.inputs {
		if in.ID == keepID {
			continue
		}
		if !c.hasUniqueFeature(in.ID) {
			dead = append(dead, in.ID)
		}
	}
	for _, id := range dead {
		c.removeInput(id)
	}
}

// hasUniqueFeature reports whether id is the sole remaining owner of at
// least one of its admitted features.
func (c *Corpus) hasUniqueFeature(id uuid.UUID) bool {
	for _, f := range c.features[id] {
		if len(c.owners[f]) <= 1 {
			return true
		}
	}
	return false
}

// removeInput drops id from corpus membership and its ownership bookkeeping.
// seen is left untouched: it records what has ever been reached, not what
// the corpus currently holds.
func (c *Corpus) removeInput(id uuid.UUID) {
	for _, f := range c.features[id] {
		if owners := c.owners[f]; owners != nil {
			delete(owners, id)
			if len(owners) == 0 {
				delete(c.owners, f)
			}
		}
	}
	delete(c.features, id)

	for i, in := range c.inputs {
		if in.ID == id {
			c.inputs = append(c.inputs[:i], c.inputs[i+1:]...)
			break
		}
	}
}

// Len returns the number of admitted inputs.
func (c *Corpus) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inputs)
}

// FeatureCount returns the number of distinct features covered so far.
func (c *Corpus) FeatureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// PickParent returns a weighted-random corpus entry to mutate from,
// favoring inputs admitted more recently and inputs that still uniquely
// explain more features — spec's "favor recently admitted, favor those
// with unique features". intn(n) must return a value in [0, n); PickParent
// draws intn of the sum of all weights and walks the cumulative
// distribution, so a stub returning 0 always selects the first (oldest)
// entry, preserving behavior for callers with a single corpus member. The
// second return is false if the corpus is empty.
func (c *Corpus) PickParent(intn func(n int) int) (*input.Input, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.inputs) == 0 {
		return nil, false
	}

	weights := make([]int, len(c.inputs))
	total := 0
	for i, in := range c.inputs {
		w := (i + 1) * (1 + c.uniqueFeatureCount(in.ID))
		weights[i] = w
		total += w
	}

	r := intn(total)
	cum := 0
	for i, w := range weights {
		cum += w
		if r < cum {
			return c.inputs[i], true
		}
	}
	return c.inputs[len(c.inputs)-1], true
}

// uniqueFeatureCount returns how many of id's admitted features it is
// still the sole owner of.
func (c *Corpus) uniqueFeatureCount(id uuid.UUID) int {
	n := 0
	for _, f := range c.features[id] {
		if len(c.owners[f]) <= 1 {
			n++
		}
	}
	return n
}

// Get returns the input with the given ID, used when looking up a crash's
// parent for triage.
func (c *Corpus) Get(id uuid.UUID) (*input.Input, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, in := range c.inputs {
		if in.ID == id {
			return in, true
		}
	}
	return nil, false
}

// Replace swaps the admitted input with the given ID for replacement,
// leaving its position and the corpus's seen-feature set untouched — used
// after minimization, where a shorter stream reaching the same feature set
// replaces the original it was derived from.
func (c *Corpus) Replace(id uuid.UUID, replacement *input.Input) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, in := range c.inputs {
		if in.ID == id {
			c.inputs[i] = replacement
			return true
		}
	}
	return false
}

// All returns every admitted input, in admission order. The returned slice
// is a snapshot; later admissions do not extend it.
func (c *Corpus) All() []*input.Input {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*input.Input, len(c.inputs))
	copy(out, c.inputs)
	return out
}
