package coverage

import "sort"

// Feature is what the corpus deduplicates on: an edge paired with a coarse
// log2-ish hit-count bucket, not the raw saturating counter value.
type Feature struct {
	Edge      Edge
	HitBucket uint8
}

// hitBucket maps a saturating counter value to one of the classic
// eight AFL-style hit-count buckets: {1}, {2}, {3}, {4-7}, {8-15}, {16-31},
// {32-127}, {128-255}. This grouping is asymmetric on purpose (it is not a
// clean power-of-two bit-length split) and is specified explicitly rather
// than derived, since the unsafe word-aligned scan in the reference
// implementation this is ported from computes it implicitly via pointer
// tricks this port does not need to reproduce (see Open Questions).
func hitBucket(count Entry) uint8 {
	switch {
	case count == 0:
		return 0
	case count == 1:
		return 1
	case count == 2:
		return 2
	case count == 3:
		return 3
	case count <= 7:
		return 4
	case count <= 15:
		return 5
	case count <= 31:
		return 6
	case count <= 127:
		return 7
	default:
		return 8
	}
}

// CoverageBitmap is the sparse set of features extracted from a RawBitmap
// after one execution.
type CoverageBitmap struct {
	features []Feature
}

// Features returns the extracted feature list, sorted by (edge, hit bucket).
func (c *CoverageBitmap) Features() []Feature {
	return c.features
}

// Len returns the number of features.
func (c *CoverageBitmap) Len() int {
	return len(c.features)
}

// ExtractFeatures scans bitmap for non-zero counters and emits one Feature
// per hit entry. Deterministic and total: calling this twice on the same
// bitmap produces identical output, and the count equals the number of
// non-zero bytes (spec §8 invariant).
//
// The reference implementation scans machine words and extracts set bits
// MSB-to-LSB with unsafe pointer alignment tricks; this scans byte-by-byte,
// which the spec explicitly allows (§9: "any equivalent-output
// implementation is conformant").
func ExtractFeatures(bitmap *RawBitmap) *CoverageBitmap {
	entries := bitmap.AsSlice()
	features := make([]Feature, 0, len(entries))

	for i, v := range entries {
		if v == 0 {
			continue
		}
		features = append(features, Feature{
			Edge:      Edge(i),
			HitBucket: hitBucket(v),
		})
	}

	sort.Slice(features, func(i, j int) bool {
		if features[i].Edge != features[j].Edge {
			return features[i].Edge < features[j].Edge
		}
		return features[i].HitBucket < features[j].HitBucket
	})

	return &CoverageBitmap{features: features}
}
