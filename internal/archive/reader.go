package archive

import (
	"archive/tar"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

// Entry is one raw archive entry, classified by path but not yet parsed.
// Callers that only care about a subset of kinds can switch on Kind and
// ignore the rest; an unrecognized path comes back as KindUnknown rather
// than an error.
type Entry struct {
	Path string
	Kind Kind
	Data []byte
}

// Reader walks an archive's entries in the order they were written.
type Reader struct {
	zstdDec *zstd.Decoder
	tarR    *tar.Reader
}

// NewReader wraps r as a zstd-compressed tar stream.
func NewReader(r io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: create zstd reader: %w", err)
	}
	return &Reader{zstdDec: dec, tarR: tar.NewReader(dec)}, nil
}

// Close releases the underlying zstd decoder.
func (r *Reader) Close() {
	r.zstdDec.Close()
}

// Next returns the next entry, or io.EOF once the archive is exhausted.
func (r *Reader) Next() (*Entry, error) {
	header, err := r.tarR.Next()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read next header: %w", err)
	}

	data, err := io.ReadAll(r.tarR)
	if err != nil {
		return nil, fmt.Errorf("archive: read entry %s: %w", header.Name, err)
	}

	return &Entry{Path: header.Name, Kind: ClassifyPath(header.Name), Data: data}, nil
}

// ParseMeta parses a KindMeta entry.
func ParseMeta(data []byte) (Meta, error) {
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("archive: parse meta: %w", err)
	}
	return meta, nil
}

// ParseStaticConfig parses a KindStaticConfig entry: it is already plain text.
func ParseStaticConfig(data []byte) string {
	return string(data)
}

// ParseTargetConfig parses a KindTargetConfigPath entry.
func ParseTargetConfig(data []byte) (config.TargetConfig, error) {
	var target config.TargetConfig
	if err := yaml.Unmarshal(data, &target); err != nil {
		return config.TargetConfig{}, fmt.Errorf("archive: parse target config: %w", err)
	}
	return target, nil
}

// ParseCmdline parses a KindCmdline entry.
func ParseCmdline(data []byte) ([]string, error) {
	var args []string
	if err := yaml.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("archive: parse cmdline: %w", err)
	}
	return args, nil
}

// ParseFilemap parses a KindFilemap entry.
func ParseFilemap(data []byte) (map[string]string, error) {
	var filemap map[string]string
	if err := yaml.Unmarshal(data, &filemap); err != nil {
		return nil, fmt.Errorf("archive: parse filemap: %w", err)
	}
	return filemap, nil
}

// ParseSeed parses a KindSeed entry: an 8-byte big-endian uint64.
func ParseSeed(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("archive: seed entry has %d bytes, want 8", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// ParseModels parses a KindModels entry.
func ParseModels(data []byte) ([]modeling.Mmio, error) {
	return DecodeModels(data)
}

// ParseInput parses a KindCorpusInput entry.
func ParseInput(data []byte) (*input.Input, error) {
	return DecodeInput(data)
}
