package coverage

import "testing"

func TestExtractFeaturesCountMatchesNonZeroEntries(t *testing.T) {
	bitmap := NewRawBitmap(16)
	bitmap.Add(1)
	bitmap.Add(2)
	bitmap.Add(2)
	bitmap.Add(9)

	features := ExtractFeatures(bitmap)
	nonZero := 0
	for i := 0; i < bitmap.Len(); i++ {
		if bitmap.At(i) != 0 {
			nonZero++
		}
	}
	if features.Len() != nonZero {
		t.Fatalf("want %d features, got %d", nonZero, features.Len())
	}
}

func TestExtractFeaturesIsDeterministic(t *testing.T) {
	bitmap := NewRawBitmap(16)
	bitmap.Add(1)
	bitmap.Add(4)
	bitmap.Add(8)

	a := ExtractFeatures(bitmap)
	b := ExtractFeatures(bitmap)
	if a.Len() != b.Len() {
		t.Fatalf("extraction should be stable across calls: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Features() {
		if a.Features()[i] != b.Features()[i] {
			t.Fatalf("feature %d differs between runs: %+v vs %+v", i, a.Features()[i], b.Features()[i])
		}
	}
}

func TestExtractFeaturesSortedByEdgeThenBucket(t *testing.T) {
	bitmap := NewRawBitmap(16)
	bitmap.Add(10)
	bitmap.Add(2)
	bitmap.Add(2)

	features := ExtractFeatures(bitmap).Features()
	for i := 1; i < len(features); i++ {
		prev, cur := features[i-1], features[i]
		if cur.Edge < prev.Edge {
			t.Fatalf("features not sorted by edge: %+v before %+v", prev, cur)
		}
		if cur.Edge == prev.Edge && cur.HitBucket < prev.HitBucket {
			t.Fatalf("features not sorted by hit bucket within edge: %+v before %+v", prev, cur)
		}
	}
}

func TestHitBucketBoundaries(t *testing.T) {
	cases := []struct {
		count Entry
		want  uint8
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 4},
		{7, 4},
		{8, 5},
		{15, 5},
		{16, 6},
		{31, 6},
		{32, 7},
		{127, 7},
		{128, 8},
		{255, 8},
	}
	for _, c := range cases {
		if got := hitBucket(c.count); got != c.want {
			t.Fatalf("hitBucket(%d) = %d, want %d", c.count, got, c.want)
		}
	}
}

func TestExtractFeaturesOnEmptyBitmapIsEmpty(t *testing.T) {
	bitmap := NewRawBitmap(16)
	features := ExtractFeatures(bitmap)
	if features.Len() != 0 {
		t.Fatalf("want zero features on an untouched bitmap, got %d", features.Len())
	}
}

func TestExtractFeaturesSaturatedCounterStaysInTopBucket(t *testing.T) {
	bitmap := NewRawBitmap(16)
	for i := 0; i < 1000; i++ {
		bitmap.Add(7)
	}
	features := ExtractFeatures(bitmap).Features()
	if len(features) != 1 {
		t.Fatalf("want exactly one feature, got %d", len(features))
	}
	if features[0].HitBucket != 8 {
		t.Fatalf("saturated counter should land in bucket 8, got %d", features[0].HitBucket)
	}
}
