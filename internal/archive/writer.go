package archive

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

// Writer builds an archive incrementally: each call writes one tar entry
// to an outer zstd stream. Entries are flushed in the order written, which
// a Reader preserves on the way back out.
type Writer struct {
	zstdEnc *zstd.Encoder
	tarW    *tar.Writer
}

// NewWriter wraps w with a zstd-compressed tar stream.
func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("archive: create zstd writer: %w", err)
	}
	return &Writer{zstdEnc: enc, tarW: tar.NewWriter(enc)}, nil
}

// Close flushes and closes both the tar and zstd layers.
func (w *Writer) Close() error {
	if err := w.tarW.Close(); err != nil {
		return fmt.Errorf("archive: close tar writer: %w", err)
	}
	if err := w.zstdEnc.Close(); err != nil {
		return fmt.Errorf("archive: close zstd writer: %w", err)
	}
	return nil
}

// writeEntry writes one tar entry with the given path and contents.
func (w *Writer) writeEntry(path string, data []byte) error {
	header := &tar.Header{
		Name:    path,
		Size:    int64(len(data)),
		Mode:    0o644,
		ModTime: time.Now(),
	}
	if err := w.tarW.WriteHeader(header); err != nil {
		return fmt.Errorf("archive: write header for %s: %w", path, err)
	}
	if _, err := w.tarW.Write(data); err != nil {
		return fmt.Errorf("archive: write entry %s: %w", path, err)
	}
	return nil
}

// WriteMeta writes the meta.yml entry.
func (w *Writer) WriteMeta(meta Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("archive: marshal meta: %w", err)
	}
	return w.writeEntry(PathMeta, data)
}

// WriteStaticConfig writes the config/config.txt entry.
func (w *Writer) WriteStaticConfig(text string) error {
	return w.writeEntry(PathStaticConfig, []byte(text))
}

// WriteTargetConfig writes the config/target-config.txt entry: the
// structured TargetConfig (firmware path, limits, models path, entry
// point) a later `run` invocation needs to rebuild the same
// Emulator without re-parsing config/config.txt's free-text dump.
func (w *Writer) WriteTargetConfig(target config.TargetConfig) error {
	data, err := yaml.Marshal(target)
	if err != nil {
		return fmt.Errorf("archive: marshal target config: %w", err)
	}
	return w.writeEntry(PathTargetConfigPath, data)
}

// WriteCmdline writes the config/cmdline.yml entry: the argv the run was
// launched with, for a later `run` invocation to reconstruct context from.
func (w *Writer) WriteCmdline(args []string) error {
	data, err := yaml.Marshal(args)
	if err != nil {
		return fmt.Errorf("archive: marshal cmdline: %w", err)
	}
	return w.writeEntry(PathCmdline, data)
}

// WriteFilemap writes the config/filemap.yml entry: archived path to
// logical path, for config/file-storage entries.
func (w *Writer) WriteFilemap(filemap map[string]string) error {
	data, err := yaml.Marshal(filemap)
	if err != nil {
		return fmt.Errorf("archive: marshal filemap: %w", err)
	}
	return w.writeEntry(PathFilemap, data)
}

// WriteFile stores a raw config file's bytes under config/file-storage/.
func (w *Writer) WriteFile(logicalPath string, data []byte) error {
	return w.writeEntry(FileStoragePath(logicalPath), data)
}

// WriteSeed writes the 8-byte big-endian seed entry.
func (w *Writer) WriteSeed(seed uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	return w.writeEntry(PathSeed, buf[:])
}

// WriteModels writes the MMIO model set, YAML-encoded and then
// zstd-compressed a second time within the entry itself (the inner
// compression spec.md's `config/models.yml.zst` path name implies,
// independent of the archive's own outer zstd layer).
func (w *Writer) WriteModels(models []modeling.Mmio) error {
	doc := make([]modelDoc, len(models))
	for i, m := range models {
		doc[i] = toModelDoc(m)
	}

	yamlBytes, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("archive: marshal models: %w", err)
	}

	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	if err != nil {
		return fmt.Errorf("archive: create inner zstd writer: %w", err)
	}
	if _, err := enc.Write(yamlBytes); err != nil {
		enc.Close()
		return fmt.Errorf("archive: compress models: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("archive: close inner zstd writer: %w", err)
	}

	return w.writeEntry(PathModels, compressed.Bytes())
}

// WriteInput stores in under corpus/input-<id>.bin.
func (w *Writer) WriteInput(in *input.Input) error {
	data, err := EncodeInput(in)
	if err != nil {
		return err
	}
	return w.writeEntry(CorpusInputPath(in.ID.String()), data)
}

// WriteStatisticsExecutions writes the statistics/executions.bin entry.
func (w *Writer) WriteStatisticsExecutions(data []byte) error {
	return w.writeEntry(PathStatisticsExecutions, data)
}
