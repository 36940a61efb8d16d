package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

// modelDoc is the YAML-friendly shape of one modeling.Mmio entry: the
// context flattened the same way wireContext flattens it for gob, plus the
// model fields needed to reconstruct whichever ModelKind variant it is.
type modelDoc struct {
	HasPC        bool               `yaml:"has_pc"`
	PC           modeling.Address   `yaml:"pc,omitempty"`
	Addr         modeling.Address   `yaml:"addr"`
	Kind         modeling.ModelKind `yaml:"kind"`
	BitsWidth    uint8              `yaml:"bits_width,omitempty"`
	LeftShift    uint8              `yaml:"left_shift,omitempty"`
	Constant     uint64             `yaml:"constant,omitempty"`
	InitialValue uint64             `yaml:"initial_value,omitempty"`
	Values       []uint64           `yaml:"values,omitempty"`
}

func toModelDoc(m modeling.Mmio) modelDoc {
	doc := modelDoc{
		HasPC: m.Context.HasPC(),
		PC:    m.Context.PC(),
		Addr:  m.Context.Mmio().Addr,
	}
	if m.Model != nil {
		doc.Kind = m.Model.Kind
		doc.BitsWidth = m.Model.BitExtract.BitsWidth
		doc.LeftShift = m.Model.BitExtract.LeftShift
		doc.Constant = m.Model.Constant
		doc.InitialValue = m.Model.InitialValue
		doc.Values = m.Model.Values
	}
	return doc
}

func fromModelDoc(doc modelDoc) modeling.Mmio {
	var ctx modeling.ModelContext
	if doc.HasPC {
		ctx = modeling.FromAccessContext(modeling.NewAccessContext(doc.PC, doc.Addr))
	} else {
		ctx = modeling.FromMmioContext(modeling.NewMmioContext(doc.Addr))
	}

	model := modeling.MmioModel{
		Kind:         doc.Kind,
		BitExtract:   modeling.NewModelBitExtract(doc.BitsWidth, doc.LeftShift),
		Constant:     doc.Constant,
		InitialValue: doc.InitialValue,
		Values:       doc.Values,
	}

	return modeling.Mmio{Context: ctx, Model: &model}
}

// DecodeModels reverses WriteModels: un-zstd then un-YAML the entry bytes
// into a slice of modeling.Mmio ready to load into a Store.
func DecodeModels(entryData []byte) ([]modeling.Mmio, error) {
	dec, err := zstd.NewReader(bytes.NewReader(entryData))
	if err != nil {
		return nil, fmt.Errorf("archive: create inner zstd reader: %w", err)
	}
	defer dec.Close()

	yamlBytes, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("archive: decompress models: %w", err)
	}

	var docs []modelDoc
	if err := yaml.Unmarshal(yamlBytes, &docs); err != nil {
		return nil, fmt.Errorf("archive: parse models: %w", err)
	}

	out := make([]modeling.Mmio, len(docs))
	for i, doc := range docs {
		out[i] = fromModelDoc(doc)
	}
	return out, nil
}

// EncodeModelsYAML renders models as plain (uncompressed) YAML, the format
// `import-models` writes and a target's `--models` flag reads directly —
// the same modelDoc shape WriteModels uses, just without the archive's
// inner zstd layer, since a standalone model file is edited and diffed by
// hand far more often than an archived one is.
func EncodeModelsYAML(models []modeling.Mmio) ([]byte, error) {
	doc := make([]modelDoc, len(models))
	for i, m := range models {
		doc[i] = toModelDoc(m)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal models: %w", err)
	}
	return data, nil
}

// DecodeModelsYAML parses the plain-YAML form EncodeModelsYAML produces.
func DecodeModelsYAML(data []byte) ([]modeling.Mmio, error) {
	var docs []modelDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("archive: parse models: %w", err)
	}

	out := make([]modeling.Mmio, len(docs))
	for i, doc := range docs {
		out[i] = fromModelDoc(doc)
	}
	return out, nil
}
