package archive

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

// wireContext is the gob-serializable shape of a modeling.ModelContext:
// ModelContext itself keeps its fields unexported (it is a small sum type,
// not wire data), so the archive layer translates through its public
// accessors rather than serializing the type directly.
type wireContext struct {
	HasPC bool
	PC    modeling.Address
	Addr  modeling.Address
}

func toWireContext(c modeling.ModelContext) wireContext {
	return wireContext{HasPC: c.HasPC(), PC: c.PC(), Addr: c.Mmio().Addr}
}

func (w wireContext) toModelContext() modeling.ModelContext {
	if w.HasPC {
		return modeling.FromAccessContext(modeling.NewAccessContext(w.PC, w.Addr))
	}
	return modeling.FromMmioContext(modeling.NewMmioContext(w.Addr))
}

type wireAccessEntry struct {
	Context wireContext
	Value   uint64
}

type wireMutationRecord struct {
	Operator input.Operator
	Position int
	Length   int
}

// InputFile is the on-disk shape of one `corpus/input-<id>.bin` entry: an
// input.Input with its context fields flattened to the gob-friendly wire
// types above.
type InputFile struct {
	ID        uuid.UUID
	Category  input.Category
	ParentID  uuid.UUID
	Stream    []wireAccessEntry
	Mutations []wireMutationRecord
}

// EncodeInput serializes in into an InputFile's gob representation.
func EncodeInput(in *input.Input) ([]byte, error) {
	file := InputFile{
		ID:       in.ID,
		Category: in.Category,
		ParentID: in.ParentID,
	}

	for _, e := range in.Stream {
		file.Stream = append(file.Stream, wireAccessEntry{
			Context: toWireContext(e.Context),
			Value:   e.Value,
		})
	}
	for _, m := range in.Mutations {
		file.Mutations = append(file.Mutations, wireMutationRecord{
			Operator: m.Operator,
			Position: m.Position,
			Length:   m.Length,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&file); err != nil {
		return nil, fmt.Errorf("archive: encode input %s: %w", in.ID, err)
	}
	return buf.Bytes(), nil
}

// DecodeInput deserializes an InputFile's gob representation back into an
// input.Input.
func DecodeInput(data []byte) (*input.Input, error) {
	var file InputFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&file); err != nil {
		return nil, fmt.Errorf("archive: decode input: %w", err)
	}

	stream := make([]input.AccessEntry, len(file.Stream))
	for i, e := range file.Stream {
		stream[i] = input.AccessEntry{Context: e.Context.toModelContext(), Value: e.Value}
	}

	mutations := make([]input.MutationRecord, len(file.Mutations))
	for i, m := range file.Mutations {
		mutations[i] = input.NewRangeMutationRecord(m.Operator, m.Position, m.Length)
	}

	return &input.Input{
		ID:        file.ID,
		Category:  file.Category,
		ParentID:  file.ParentID,
		Stream:    stream,
		Mutations: mutations,
	}, nil
}
