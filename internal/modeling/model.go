package modeling

import (
	"fmt"
)

// ReadSize is the width of an MMIO access, rounded up to the next native
// integer width.
type ReadSize uint8

const (
	ReadByte  ReadSize = 1
	ReadWord  ReadSize = 2
	ReadDWord ReadSize = 4
	ReadQWord ReadSize = 8
)

// ReadSizeFromBits maps a bit width to the smallest ReadSize that holds it.
//
// The reference implementation maps 33-64 bits to DWord, which truncates
// any value needing the top 32 bits; this is a bug inherited from an
// off-by-one in its match arms (33..=64 should route to QWord, the same as
// 17..=32 already correctly routes to DWord rather than Word). This port
// corrects it: 33-64 bits maps to QWord.
func ReadSizeFromBits(n uint32) (ReadSize, error) {
	switch {
	case n == 0:
		return 0, fmt.Errorf("modeling: invalid read size with zero bits")
	case n <= 8:
		return ReadByte, nil
	case n <= 16:
		return ReadWord, nil
	case n <= 32:
		return ReadDWord, nil
	case n <= 64:
		return ReadQWord, nil
	default:
		return 0, fmt.Errorf("modeling: invalid read size with %d bits, exceeds 64", n)
	}
}

// ReadSizeFromBytes maps an exact byte count to a ReadSize.
func ReadSizeFromBytes(n uint32) (ReadSize, error) {
	switch n {
	case 1:
		return ReadByte, nil
	case 2:
		return ReadWord, nil
	case 4:
		return ReadDWord, nil
	case 8:
		return ReadQWord, nil
	default:
		return 0, fmt.Errorf("modeling: unknown read size %#x bytes", n)
	}
}

// Bits returns the bit width of the read size.
func (r ReadSize) Bits() uint32 {
	switch r {
	case ReadByte:
		return 8
	case ReadWord:
		return 16
	case ReadDWord:
		return 32
	case ReadQWord:
		return 64
	default:
		panic(fmt.Sprintf("modeling: invalid ReadSize %d", r))
	}
}

// Mask returns a bitmask covering exactly the read size's bit width.
func (r ReadSize) Mask() uint64 {
	return BitMask(uint8(r.Bits()))
}

// BitMask returns a mask of the low n bits of a 64-bit value (n in 1..=64).
func BitMask(n uint8) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return ^uint64(0) >> (64 - n)
}

// ModelBitExtract models an MMIO register as a fixed bitfield extracted
// from the chronological input stream and shifted into place, e.g. a status
// bit that toggles under firmware control but is otherwise opaque to the
// fuzzer.
type ModelBitExtract struct {
	BitsWidth uint8
	LeftShift uint8
}

// NewModelBitExtract builds a bitfield model of the given width and shift.
func NewModelBitExtract(bitsWidth, leftShift uint8) ModelBitExtract {
	return ModelBitExtract{BitsWidth: bitsWidth, LeftShift: leftShift}
}

func (m ModelBitExtract) mask() uint64 {
	return BitMask(m.BitsWidth)
}

// Apply extracts the low BitsWidth bits of value and shifts them into place.
func (m ModelBitExtract) Apply(value uint64) uint64 {
	return (value & m.mask()) << m.LeftShift
}

// Size returns the smallest ReadSize able to hold BitsWidth bits.
func (m ModelBitExtract) Size() ReadSize {
	size, err := ReadSizeFromBits(uint32(m.BitsWidth))
	if err != nil {
		panic(fmt.Sprintf("modeling: invalid ModelBitExtract: %v", err))
	}
	return size
}

// ModelKind discriminates the MmioModel variants.
type ModelKind int

const (
	KindBitExtract ModelKind = iota
	KindConstant
	KindPassthrough
	KindSet
)

// MmioModel is a closed sum over the ways an MMIO register's read value can
// be synthesized from the input stream.
//
//   - BitExtract: extract a bitfield from the chronological stream.
//   - Constant: always return a fixed value, consuming no input.
//   - Passthrough: the first read returns InitialValue; later reads return
//     whatever was last written to the address (hardware loopback).
//   - Set: return one of a fixed list of values, indexed by the next stream
//     value modulo the list's length.
type MmioModel struct {
	Kind         ModelKind
	BitExtract   ModelBitExtract
	Constant     uint64
	InitialValue uint64
	Values       []uint64
}

// NewBitExtractModel builds a BitExtract-kind model.
func NewBitExtractModel(be ModelBitExtract) MmioModel {
	return MmioModel{Kind: KindBitExtract, BitExtract: be}
}

// NewConstantModel builds a Constant-kind model.
func NewConstantModel(value uint64) MmioModel {
	return MmioModel{Kind: KindConstant, Constant: value}
}

// NewPassthroughModel builds a Passthrough-kind model.
func NewPassthroughModel(initial uint64) MmioModel {
	return MmioModel{Kind: KindPassthrough, InitialValue: initial}
}

// NewSetModel builds a Set-kind model.
func NewSetModel(values []uint64) MmioModel {
	return MmioModel{Kind: KindSet, Values: values}
}

// Mmio pairs a model context with the model that answers reads in it. A nil
// Model means the address is known but unmodeled: reads fall through to
// the raw chronological stream value with no transformation.
type Mmio struct {
	Context ModelContext
	Model   *MmioModel
}
