package corpus

import (
	"math/rand/v2"
	"testing"
)

func TestScanMemoryBlockFindsGoodString(t *testing.T) {
	d := NewDictionary()
	d.ScanMemoryBlock([]byte("\x00\x00HELLO_WORLD\x00\x00"))
	if d.Len() != 1 {
		t.Fatalf("want 1 entry, got %d: %v", d.Len(), d.entries)
	}
	if string(d.entries[0]) != "HELLO_WORLD" {
		t.Fatalf("want HELLO_WORLD, got %q", d.entries[0])
	}
}

func TestScanMemoryBlockRejectsTooShort(t *testing.T) {
	d := NewDictionary()
	d.ScanMemoryBlock([]byte("\x00abc\x00"))
	if d.Len() != 0 {
		t.Fatalf("3-byte string is below minimum length, want 0 entries, got %d", d.Len())
	}
}

func TestScanMemoryBlockRejectsTooLong(t *testing.T) {
	d := NewDictionary()
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	d.ScanMemoryBlock(long)
	if d.Len() != 0 {
		t.Fatalf("65-byte string exceeds maximum length, want 0 entries, got %d", d.Len())
	}
}

func TestScanMemoryBlockRejectsMostlySymbolNoise(t *testing.T) {
	d := NewDictionary()
	// Mostly "bad" punctuation chars, well under the 75% good threshold.
	d.ScanMemoryBlock([]byte("!@#$%^&*()"))
	if d.Len() != 0 {
		t.Fatalf("symbol noise should not pass the good/bad heuristic, got %d entries", d.Len())
	}
}

func TestScanMemoryBlockDedupsAndSorts(t *testing.T) {
	d := NewDictionary()
	d.ScanMemoryBlock([]byte("FIRST_TOKEN\x00SECOND_TOKEN\x00FIRST_TOKEN\x00"))
	if d.Len() != 2 {
		t.Fatalf("want 2 distinct entries, got %d: %v", d.Len(), d.entries)
	}
	if string(d.entries[0]) >= string(d.entries[1]) {
		t.Fatalf("entries should be sorted, got %v", d.entries)
	}
}

func TestRandomEntryReturnsAMinedString(t *testing.T) {
	d := NewDictionary()
	d.ScanMemoryBlock([]byte("CONFIG_PATH_NAME\x00"))
	rng := rand.New(rand.NewPCG(1, 2))
	entry := d.RandomEntry(rng)
	if string(entry) != "CONFIG_PATH_NAME" {
		t.Fatalf("want CONFIG_PATH_NAME, got %q", entry)
	}
}

func TestScanMemoryBlockTreatsCRLFAsOneBadChar(t *testing.T) {
	d := NewDictionary()
	// "good\r\ngood" - 8 good chars, 1 bad (the \r\n pair counted once).
	d.ScanMemoryBlock([]byte("good\r\ngood"))
	if d.Len() != 1 {
		t.Fatalf("want 1 entry for a string with a single CRLF, got %d", d.Len())
	}
}
