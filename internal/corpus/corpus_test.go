package corpus

import (
	"testing"

	"github.com/google/uuid"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

func TestIsNovelOnEmptyCorpus(t *testing.T) {
	c := New()
	features := []coverage.Feature{{Edge: 1, HitBucket: 1}}
	if !c.IsNovel(features) {
		t.Fatal("any feature should be novel against an empty corpus")
	}
}

func TestAdmitThenSameFeaturesAreNotNovel(t *testing.T) {
	c := New()
	features := []coverage.Feature{{Edge: 1, HitBucket: 1}, {Edge: 2, HitBucket: 1}}
	in := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})

	c.Admit(in, features)
	if c.IsNovel(features) {
		t.Fatal("identical feature set should not be novel after admission")
	}
}

func TestIsNovelWithPartialOverlap(t *testing.T) {
	c := New()
	in := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	c.Admit(in, []coverage.Feature{{Edge: 1, HitBucket: 1}})

	mixed := []coverage.Feature{{Edge: 1, HitBucket: 1}, {Edge: 99, HitBucket: 1}}
	if !c.IsNovel(mixed) {
		t.Fatal("a feature set with one new feature should be novel")
	}
}

func TestAdmitGrowsLenAndFeatureCount(t *testing.T) {
	c := New()
	in1 := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	in2 := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(2)), []byte{2})

	c.Admit(in1, []coverage.Feature{{Edge: 1, HitBucket: 1}})
	c.Admit(in2, []coverage.Feature{{Edge: 2, HitBucket: 1}})

	if c.Len() != 2 {
		t.Fatalf("want 2 admitted inputs, got %d", c.Len())
	}
	if c.FeatureCount() != 2 {
		t.Fatalf("want 2 distinct features, got %d", c.FeatureCount())
	}
}

func TestPickParentOnEmptyCorpus(t *testing.T) {
	c := New()
	if _, ok := c.PickParent(func(n int) int { return 0 }); ok {
		t.Fatal("want false picking a parent from an empty corpus")
	}
}

func TestPickParentReturnsAdmittedInput(t *testing.T) {
	c := New()
	in := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	c.Admit(in, []coverage.Feature{{Edge: 1, HitBucket: 1}})

	got, ok := c.PickParent(func(n int) int { return 0 })
	if !ok || got.ID != in.ID {
		t.Fatalf("want to pick back the only admitted input, got %+v ok=%v", got, ok)
	}
}

func TestGetByID(t *testing.T) {
	c := New()
	in := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	c.Admit(in, nil)

	got, ok := c.Get(in.ID)
	if !ok || got.ID != in.ID {
		t.Fatal("want to find the input by its own ID")
	}

	if _, ok := c.Get(uuid.New()); ok {
		t.Fatal("want false for an ID never admitted")
	}
}

// TestAdmitDemotesInputWithNoRemainingUniqueFeature covers spec §4.5: an
// input kept only because it uniquely demonstrated a feature is dropped
// from the corpus once a later admission also demonstrates every feature
// it carries, even though seen (and FeatureCount) still reflects that
// feature as reached.
func TestAdmitDemotesInputWithNoRemainingUniqueFeature(t *testing.T) {
	c := New()
	shared := coverage.Feature{Edge: 1, HitBucket: 1}

	first := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	c.Admit(first, []coverage.Feature{shared})

	second := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(2)), []byte{2})
	c.Admit(second, []coverage.Feature{shared, {Edge: 2, HitBucket: 1}})

	if c.Len() != 1 {
		t.Fatalf("want first demoted once second covers its only feature, corpus has %d entries", c.Len())
	}
	if _, ok := c.Get(first.ID); ok {
		t.Fatal("want first no longer retrievable after demotion")
	}
	if _, ok := c.Get(second.ID); !ok {
		t.Fatal("want second (the just-admitted input) to survive demotion")
	}
	if c.FeatureCount() != 2 {
		t.Fatalf("want seen to still report 2 features despite demotion, got %d", c.FeatureCount())
	}
}

// TestAdmitKeepsInputWithRemainingUniqueFeature ensures demotion is
// per-feature: an input that shares one feature with a new admission but
// still uniquely explains another survives.
func TestAdmitKeepsInputWithRemainingUniqueFeature(t *testing.T) {
	c := New()
	shared := coverage.Feature{Edge: 1, HitBucket: 1}
	onlyFirst := coverage.Feature{Edge: 3, HitBucket: 1}

	first := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	c.Admit(first, []coverage.Feature{shared, onlyFirst})

	second := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(2)), []byte{2})
	c.Admit(second, []coverage.Feature{shared})

	if c.Len() != 2 {
		t.Fatalf("want both inputs retained (first still uniquely explains a feature), got %d", c.Len())
	}
}

// TestPickParentWeightsTowardRecentAndUniqueInputs draws with a stub intn
// that always returns the top of its range, which should land on whichever
// corpus entry's cumulative weight reaches last — the most recently
// admitted, most-uniquely-featured input — rather than a uniform pick.
func TestPickParentWeightsTowardRecentAndUniqueInputs(t *testing.T) {
	c := New()
	in1 := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(1)), []byte{1})
	c.Admit(in1, []coverage.Feature{{Edge: 1, HitBucket: 1}})

	in2 := input.NewSeed(modeling.FromMmioContext(modeling.NewMmioContext(2)), []byte{2})
	c.Admit(in2, []coverage.Feature{{Edge: 2, HitBucket: 1}})

	got, ok := c.PickParent(func(n int) int { return n - 1 })
	if !ok || got.ID != in2.ID {
		t.Fatalf("want the last-admitted input favored at the top of the weighted range, got %+v ok=%v", got, ok)
	}
}
