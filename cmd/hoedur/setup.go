package main

import (
	"fmt"
	"os"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/archive"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/corpus"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/patch"
)

// target bundles the collaborators built from a TargetConfig: the emulator
// ready to run from its entry point, the firmware's symbol table, and the
// model store it was wired up with (kept around for import/export and for
// patch-script symbol resolution).
type target struct {
	emu      *emulator.Emulator
	firmware *emulator.FirmwareInfo
	store    *modeling.Store
	entry    uint32
}

// buildTarget loads firmware and its model set, constructs an Emulator
// wired to a fresh coverage bitmap, applies an optional patch script, and
// initializes the CPU from the firmware's reset vector. extraHooks is
// merged in as-is (the fuzz loop passes the zero value; `run --disasm`
// passes a trace.Collector's hooks).
func buildTarget(cfg config.TargetConfig, patchScriptPath string, extraHooks emulator.Hooks) (*target, error) {
	if cfg.Firmware == "" {
		return nil, errutil.Wrap(errutil.Config, "no firmware image given (--firmware)")
	}

	store := modeling.NewStore()
	if cfg.ModelsPath != "" {
		data, err := os.ReadFile(cfg.ModelsPath)
		if err != nil {
			return nil, errutil.Wrap(errutil.IO, "read models file %s: %w", cfg.ModelsPath, err)
		}
		models, err := archive.DecodeModelsYAML(data)
		if err != nil {
			return nil, errutil.Wrap(errutil.Config, "parse models file %s: %w", cfg.ModelsPath, err)
		}
		for _, m := range models {
			store.Add(m.Context, *m.Model)
		}
	}

	bitmap := coverage.NewRawBitmap(coverage.DefaultSize)
	emu, err := emulator.New(
		emulator.WithBitmap(bitmap),
		emulator.WithLimits(cfg.Limits.ToLimits()),
		emulator.WithModelStore(store),
		emulator.WithHooks(extraHooks),
	)
	if err != nil {
		return nil, errutil.Wrap(errutil.Emulator, "create emulator: %w", err)
	}

	info, err := emu.LoadFirmwareImage(cfg.Firmware)
	if err != nil {
		emu.Close()
		return nil, errutil.Wrap(errutil.IO, "load firmware %s: %w", cfg.Firmware, err)
	}

	if patchScriptPath != "" {
		script, err := patch.New(emu, info)
		if err != nil {
			emu.Close()
			return nil, errutil.Wrap(errutil.Config, "create patch script runtime: %w", err)
		}
		if err := script.LoadFile(patchScriptPath); err != nil {
			emu.Close()
			return nil, errutil.Wrap(errutil.Config, "run patch script %s: %w", patchScriptPath, err)
		}
	}

	entry := cfg.EntryPoint
	if entry == 0 {
		entry = info.Entry
	}
	if entry == 0 {
		if err := emu.InitializeFromVectorTable(); err != nil {
			emu.Close()
			return nil, errutil.Wrap(errutil.Emulator, "initialize from vector table: %w", err)
		}
		entry = emu.PC()
	} else if err := emu.SetPC(entry); err != nil {
		emu.Close()
		return nil, errutil.Wrap(errutil.Emulator, "set entry pc: %w", err)
	}

	return &target{emu: emu, firmware: info, store: store, entry: entry}, nil
}

func (t *target) Close() {
	t.emu.Close()
}

// dictionaryFromFirmware mines a string dictionary out of the loaded
// firmware image, for the mutator's OpDictionaryInsert operator.
func dictionaryFromFirmware(firmwarePath string) (*corpus.Dictionary, error) {
	data, err := os.ReadFile(firmwarePath)
	if err != nil {
		return nil, fmt.Errorf("read firmware for dictionary scan: %w", err)
	}
	dict := corpus.NewDictionary()
	dict.ScanMemoryBlock(data)
	return dict, nil
}
