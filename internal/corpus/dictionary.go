package corpus

import (
	"math/rand/v2"
	"sort"
)

const (
	dictMinLen = 4
	dictMaxLen = 64
)

// Dictionary holds printable-ASCII strings mined from target memory, used
// by the mutator's dictionary-insert operator to nudge the fuzzer toward
// string comparisons and magic values the target parses out of MMIO input.
type Dictionary struct {
	entries [][]byte
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{}
}

// Len returns the number of distinct entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// RandomEntry returns a uniformly random entry. Callers must not call this
// on an empty dictionary (check Len first).
func (d *Dictionary) RandomEntry(rng *rand.Rand) []byte {
	return d.entries[rng.IntN(len(d.entries))]
}

// isGoodChar reports whether b counts toward a string's "good" heuristic
// score: alphanumerics and a small set of common punctuation found in
// identifiers, paths, and protocol tokens.
func isGoodChar(b byte) bool {
	if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' {
		return true
	}
	switch b {
	case ' ', '_', '-', '=', '/', '.', '\'', '"':
		return true
	}
	return false
}

// isPrintableASCII reports whether b is printable ASCII or one of the
// common whitespace control characters (\r, \n, \t).
func isPrintableASCII(b byte) bool {
	if b == '\r' || b == '\n' || b == '\t' {
		return true
	}
	return b >= 0x20 && b <= 0x7e
}

// ScanMemoryBlock mines printable-ASCII strings out of a block of target
// memory (e.g. a firmware image's .rodata, or a ROM dump). A run of
// printable bytes is kept as a dictionary entry if it is within
// [dictMinLen, dictMaxLen] bytes and at least 75% of its characters score
// as "good" (alphanumeric or common token punctuation) rather than
// "bad" (other printable symbols) — the same heuristic used to decide
// whether a sequence looks like a meaningful string rather than incidental
// printable noise.
func (d *Dictionary) ScanMemoryBlock(memoryBlock []byte) {
	var buffer []byte
	good, bad := 0, 0
	valid := false

	flush := func() {
		if valid && len(buffer) >= dictMinLen && len(buffer) <= dictMaxLen {
			if bad*3 <= good {
				entry := make([]byte, len(buffer))
				copy(entry, buffer)
				d.entries = append(d.entries, entry)
			}
		}
		buffer = nil
		good, bad = 0, 0
		valid = false
	}

	for i, b := range memoryBlock {
		validByte := isPrintableASCII(b)
		if validByte {
			switch {
			case isGoodChar(b):
				good++
			case len(buffer) > 0 && buffer[len(buffer)-1] == '\r' && b == '\n':
				// "\r\n" counts as a single bad char (one newline), not two.
			default:
				bad++
			}
			buffer = append(buffer, b)
			valid = true
		}

		lastByte := i == len(memoryBlock)-1
		if valid && (!validByte || lastByte) {
			flush()
		}
	}

	d.dedup()
}

func (d *Dictionary) dedup() {
	sort.Slice(d.entries, func(i, j int) bool {
		return string(d.entries[i]) < string(d.entries[j])
	})

	out := d.entries[:0]
	for i, e := range d.entries {
		if i == 0 || string(e) != string(d.entries[i-1]) {
			out = append(out, e)
		}
	}
	d.entries = out
}
