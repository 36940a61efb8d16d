package modeling

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// mmioHookPCAllAccessSites is the PC fuzzware writes when a model applies
// to every access site for an address rather than one specific call site.
const mmioHookPCAllAccessSites Address = 0xffffffff

// fuzzwareMmioModels mirrors the top-level "mmio_models:" document fuzzware
// emits, grouped by model kind, each a map from an arbitrary label to the
// model's parameters. The label itself carries no meaning here; only map
// iteration order needs to be deterministic, which the YAML loader below
// guarantees via ordered decoding.
type fuzzwareMmioModels struct {
	Bitextract  yaml.Node `yaml:"bitextract"`
	Constant    yaml.Node `yaml:"constant"`
	Passthrough yaml.Node `yaml:"passthrough"`
	Set         yaml.Node `yaml:"set"`
}

type fuzzwareDocument struct {
	MmioModels fuzzwareMmioModels `yaml:"mmio_models"`
}

type fuzzwareBitextract struct {
	PC        Address `yaml:"pc"`
	Addr      Address `yaml:"addr"`
	LeftShift uint8   `yaml:"left_shift"`
	Mask      uint32  `yaml:"mask"`
	Size      uint8   `yaml:"size"`
}

type fuzzwareConstant struct {
	PC   Address `yaml:"pc"`
	Addr Address `yaml:"addr"`
	Val  uint64  `yaml:"val"`
}

type fuzzwarePassthrough struct {
	PC      Address `yaml:"pc"`
	Addr    Address `yaml:"addr"`
	InitVal *uint64 `yaml:"init_val"`
}

type fuzzwareSet struct {
	PC   Address  `yaml:"pc"`
	Addr Address  `yaml:"addr"`
	Vals []uint64 `yaml:"vals"`
}

func contextFromFuzzware(pc, addr Address) ModelContext {
	if pc != mmioHookPCAllAccessSites {
		return FromAccessContext(NewAccessContext(pc, addr))
	}
	return FromMmioContext(NewMmioContext(addr))
}

// ImportFuzzwareModels parses a fuzzware `mmio_models.yml` document and
// returns the equivalent set of Mmio entries, ready to load into a Store.
//
// fuzzware expresses BitExtract width in bytes and shift in bits-from-an-
// arbitrary-offset; this converts the width to bits and rounds the shift
// down to a byte boundary the way the reference conversion does, since a
// sub-byte shift has no meaning once
// the extracted field is re-applied to a byte-aligned chronological stream
// value.
func ImportFuzzwareModels(data []byte) ([]Mmio, error) {
	var doc fuzzwareDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("modeling: parse fuzzware models: %w", err)
	}

	var out []Mmio

	bitextract, err := decodeOrderedMap[fuzzwareBitextract](&doc.MmioModels.Bitextract)
	if err != nil {
		return nil, fmt.Errorf("modeling: decode bitextract models: %w", err)
	}
	for _, entry := range bitextract {
		bits := uint32(entry.Size) * 8
		leftShift := entry.LeftShift - (entry.LeftShift % 8)
		out = append(out, Mmio{
			Context: contextFromFuzzware(entry.PC, entry.Addr),
			Model: modelPtr(NewBitExtractModel(
				NewModelBitExtract(uint8(bits), leftShift),
			)),
		})
	}

	constant, err := decodeOrderedMap[fuzzwareConstant](&doc.MmioModels.Constant)
	if err != nil {
		return nil, fmt.Errorf("modeling: decode constant models: %w", err)
	}
	for _, entry := range constant {
		out = append(out, Mmio{
			Context: contextFromFuzzware(entry.PC, entry.Addr),
			Model:   modelPtr(NewConstantModel(entry.Val)),
		})
	}

	passthrough, err := decodeOrderedMap[fuzzwarePassthrough](&doc.MmioModels.Passthrough)
	if err != nil {
		return nil, fmt.Errorf("modeling: decode passthrough models: %w", err)
	}
	for _, entry := range passthrough {
		initial := uint64(0)
		if entry.InitVal != nil {
			initial = *entry.InitVal
		}
		out = append(out, Mmio{
			Context: contextFromFuzzware(entry.PC, entry.Addr),
			Model:   modelPtr(NewPassthroughModel(initial)),
		})
	}

	set, err := decodeOrderedMap[fuzzwareSet](&doc.MmioModels.Set)
	if err != nil {
		return nil, fmt.Errorf("modeling: decode set models: %w", err)
	}
	for _, entry := range set {
		out = append(out, Mmio{
			Context: contextFromFuzzware(entry.PC, entry.Addr),
			Model:   modelPtr(NewSetModel(entry.Vals)),
		})
	}

	return out, nil
}

// decodeOrderedMap decodes a YAML mapping node into a slice, preserving
// document order (unlike decoding straight into a Go map). node may be the
// zero yaml.Node when the key was absent from the document.
func decodeOrderedMap[T any](node *yaml.Node) ([]T, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got kind %d", node.Kind)
	}

	out := make([]T, 0, len(node.Content)/2)
	for i := 1; i < len(node.Content); i += 2 {
		var value T
		if err := node.Content[i].Decode(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}
