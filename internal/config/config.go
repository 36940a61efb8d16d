// Package config holds the fuzzer's run configuration: CLI flag structs
// bound by cobra in cmd/hoedur, the seed-file loading convention, and a
// StaticConfig snapshot recorded into the archive at startup so a run can
// always be explained later from its own output.
package config

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/log"
)

// FuzzFlags binds the `fuzz` subcommand's flags.
type FuzzFlags struct {
	Name         string
	Firmware     string
	Seed         string
	PrefixInput  []string
	ImportCorpus []string
	Snapshots    bool
	Statistics   bool
	ArchiveDir   string
	LogConfig    string
	ModelsPath   string
	Quiet        bool
	Verbose      bool
}

// RunFlags binds the `run` subcommand's flags: replay a single input
// against an archived target for crash reproduction.
type RunFlags struct {
	Archive string
	Input   string
	Disasm  bool
}

// LoadSeed reads an 8-byte big-endian seed from path, exactly as the
// reference implementation's HoedurConfig::from_cli does: a short file is
// zero-padded with a warning rather than rejected, since a seed file is a
// convenience, not a correctness-critical input.
func LoadSeed(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("config: open seed file %s: %w", path, err)
	}
	defer f.Close()

	var buf [8]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("config: read seed file %s: %w", path, err)
	}
	if n < 8 {
		if log.L != nil {
			log.L.Sugar().Warnf("seed file %s too short (%d bytes), filling with zero", path, n)
		}
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}

// TargetConfig is the static description of a fuzzing target: the firmware
// image to load, its execution limits, and the MMIO model set to resolve
// reads with. It is the thing a `config/target-config.txt` archive entry
// deserializes into, and what StaticConfig.Dump renders as human-readable
// text for the `config/config.txt` archive entry.
type TargetConfig struct {
	Firmware   string                `yaml:"firmware"`
	Limits     emulator.TargetLimits `yaml:"limits"`
	ModelsPath string                `yaml:"models"`
	EntryPoint uint32                `yaml:"entry_point,omitempty"`
}

// DefaultTargetConfig returns a TargetConfig with default limits and no
// firmware/model paths set, for the caller to fill in from CLI flags.
func DefaultTargetConfig() TargetConfig {
	return TargetConfig{Limits: emulator.DefaultTargetLimits()}
}

// StaticConfig is the full, resolved configuration of one fuzzing run: the
// target plus the run-level knobs (seed, corpus sources, snapshotting).
// It exists so a run can be fully explained from its own archived output,
// without needing the original command line.
type StaticConfig struct {
	Name         string
	Target       TargetConfig
	Seed         uint64
	HasSeed      bool
	PrefixInput  []string
	ImportCorpus []string
	Snapshots    bool
	Statistics   bool
}

// FromFuzzFlags resolves a StaticConfig from parsed CLI flags, loading the
// seed file if one was given.
func FromFuzzFlags(flags FuzzFlags) (StaticConfig, error) {
	cfg := StaticConfig{
		Name:         flags.Name,
		Target:       DefaultTargetConfig(),
		PrefixInput:  flags.PrefixInput,
		ImportCorpus: flags.ImportCorpus,
		Snapshots:    flags.Snapshots,
		Statistics:   flags.Statistics,
	}
	cfg.Target.Firmware = flags.Firmware
	cfg.Target.ModelsPath = flags.ModelsPath

	if flags.Seed != "" {
		seed, err := LoadSeed(flags.Seed)
		if err != nil {
			return StaticConfig{}, err
		}
		cfg.Seed = seed
		cfg.HasSeed = true
	}

	return cfg, nil
}

// Dump renders the configuration as text, in a fixed field order so two
// runs with the same configuration produce byte-identical output —
// compared against the archived `config/config.txt` entry when explaining
// or reproducing a run.
func (c StaticConfig) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", c.Name)
	fmt.Fprintf(&b, "firmware: %s\n", c.Target.Firmware)
	fmt.Fprintf(&b, "models: %s\n", c.Target.ModelsPath)
	fmt.Fprintf(&b, "limits.basic_blocks: %d\n", c.Target.Limits.BasicBlocks)
	fmt.Fprintf(&b, "limits.interrupts: %d\n", c.Target.Limits.Interrupts)
	fmt.Fprintf(&b, "limits.mmio_read: %d\n", c.Target.Limits.MmioRead)
	fmt.Fprintf(&b, "limits.input_read_overdue: %d\n", c.Target.Limits.InputReadOverdue)
	if c.HasSeed {
		fmt.Fprintf(&b, "seed: %d\n", c.Seed)
	} else {
		fmt.Fprintf(&b, "seed: random\n")
	}
	fmt.Fprintf(&b, "prefix_input: %s\n", strings.Join(c.PrefixInput, ","))
	fmt.Fprintf(&b, "import_corpus: %s\n", strings.Join(c.ImportCorpus, ","))
	fmt.Fprintf(&b, "snapshots: %t\n", c.Snapshots)
	fmt.Fprintf(&b, "statistics: %t\n", c.Statistics)
	return b.String()
}
