package main

import (
	"bytes"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/archive"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/corpus"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/coverage"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/fuzzer"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/log"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/mutator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/statistics"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/statistics/tui"
)

// seedContext is the fixed context plain byte-file seeds (--prefix-input)
// are recorded under: such a file carries no per-byte access-site
// information of its own, so every byte is attributed to the same
// placeholder MMIO address rather than inventing one per byte.
var seedContext = modeling.FromMmioContext(modeling.NewMmioContext(0))

func runFuzz(cmd *cobra.Command, args []string) error {
	initLogging(fuzzFlags.Verbose)

	cfg, err := config.FromFuzzFlags(fuzzFlags)
	if err != nil {
		return err
	}
	// cfg.Snapshots is carried for archive/config parity with the
	// reference CLI flag, but internal/fuzzer always restores its one
	// captured baseline snapshot between executions — that behavior is a
	// pure performance optimization (skip re-running firmware init per
	// execution), never an observable difference in what gets fuzzed, so
	// there is nothing for a false value to disable.

	tgt, err := buildTarget(cfg.Target, patchScript, emulator.Hooks{})
	if err != nil {
		return err
	}
	defer tgt.Close()

	dict, err := dictionaryFromFirmware(cfg.Target.Firmware)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if !cfg.HasSeed {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	cp := corpus.New()
	mut := mutator.New(rng, dict)
	stats := statistics.New(time.Now())

	name := cfg.Name
	if name == "" {
		name = filepath.Base(cfg.Target.Firmware)
	}
	outPath := filepath.Join(fuzzFlags.ArchiveDir, name+".tar.zst")

	outFile, err := os.Create(outPath)
	if err != nil {
		return errutil.Wrap(errutil.IO, "create archive %s: %w", outPath, err)
	}
	defer outFile.Close()

	aw, err := archive.NewWriter(outFile)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open archive writer: %w", err)
	}
	defer aw.Close()

	if err := writeArchiveHeader(aw, cfg, tgt.store, os.Args); err != nil {
		return err
	}

	fz, err := fuzzer.New(tgt.emu, tgt.entry, cp, mut, stats, rng, fuzzer.Hooks{
		OnAdmit: func(in *input.Input, features []coverage.Feature) {
			if err := aw.WriteInput(in); err != nil {
				errutil.Log(errutil.Wrap(errutil.IO, "archive admitted input %s: %w", in.ID, err))
				return
			}
			if log.L != nil {
				log.L.Sugar().Infow("admit", "input_id", in.ID.String(), "category", in.Category.String(), "features", len(features))
			}
		},
		OnCrash: func(in *input.Input, reason emulator.ExitReason) {
			confirmed, cerr := confirmCrash(cfg.Target, in)
			if cerr != nil {
				errutil.Log(errutil.Wrap(errutil.Emulator, "confirm crash %s in isolated child: %w", in.ID, cerr))
			} else if !confirmed && log.L != nil {
				log.L.Sugar().Warnw("crash not reproduced in isolated run-single child", "input_id", in.ID.String())
			}

			if err := aw.WriteInput(in); err != nil {
				errutil.Log(errutil.Wrap(errutil.IO, "archive crashing input %s: %w", in.ID, err))
			}
			if log.L != nil {
				log.L.Sugar().Warnw("crash", "input_id", in.ID.String(), "reason", reason.Kind.String(), "detail", reason.Detail, "confirmed", confirmed)
			}
		},
	})
	if err != nil {
		return err
	}

	if err := seedCorpus(fz, fuzzFlags.PrefixInput, fuzzFlags.ImportCorpus); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if fz.Exit.Load() {
				fz.Term.Store(true)
			} else {
				fz.Exit.Store(true)
			}
		}
	}()
	defer signal.Stop(sigCh)

	stop := make(chan struct{})
	if !fuzzFlags.Quiet && isatty.IsTerminal(os.Stdout.Fd()) {
		go func() {
			_ = tui.Run(func() tui.Snapshot {
				execs, _, _ := stats.WindowCounts()
				rate := tui.RatePerSecond(execs, 250*time.Millisecond)
				return tui.FromStatistics(name, stats, rate, cp.Len(), cp.FeatureCount(), time.Now())
			}, stop)
		}()
	}

	runLoop(fz, stats, fuzzFlags.Statistics, cp)
	close(stop)

	if fuzzFlags.Statistics {
		stats.Sample(time.Now(), cp.Len(), cp.FeatureCount())
	}
	if err := writeStatistics(aw, stats); err != nil {
		errutil.Log(err)
	}

	return nil
}

// runLoop drives Step until the corpus is exhausted or EXIT/TERM is raised,
// sampling statistics roughly every SampleInterval.
func runLoop(fz *fuzzer.Fuzzer, stats *statistics.Statistics, recordStats bool, cp *corpus.Corpus) {
	for {
		if fz.Term.Load() {
			return
		}
		_, ok, err := fz.Step()
		if err != nil {
			if !errutil.Log(err) {
				return
			}
			continue
		}
		if !ok {
			return
		}
		if recordStats && stats.ShouldSample(time.Now()) {
			stats.Sample(time.Now(), cp.Len(), cp.FeatureCount())
		}
	}
}

// seedCorpus loads --prefix-input files and --import-corpus archives,
// running each through the fuzzer once so it is admitted exactly like any
// other candidate; falling back to an empty seed when neither is given.
func seedCorpus(fz *fuzzer.Fuzzer, prefixInputs, importArchives []string) error {
	seeded := false

	for _, path := range prefixInputs {
		raw, err := os.ReadFile(path)
		if err != nil {
			return errutil.Wrap(errutil.IO, "read seed input %s: %w", path, err)
		}
		in := input.NewSeed(seedContext, raw)
		if _, err := fz.SeedInput(in); err != nil {
			return err
		}
		seeded = true
	}

	for _, path := range importArchives {
		if err := importArchiveCorpus(fz, path); err != nil {
			return err
		}
		seeded = true
	}

	if !seeded {
		if _, err := fz.SeedEmpty(); err != nil {
			return err
		}
	}
	return nil
}

func importArchiveCorpus(fz *fuzzer.Fuzzer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open import archive %s: %w", path, err)
	}
	defer f.Close()

	r, err := archive.NewReader(f)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open import archive reader %s: %w", path, err)
	}
	defer r.Close()

	for {
		entry, err := r.Next()
		if err != nil {
			break
		}
		if entry.Kind != archive.KindCorpusInput {
			continue
		}
		in, err := archive.ParseInput(entry.Data)
		if err != nil {
			errutil.Log(errutil.Wrap(errutil.IO, "parse imported input %s: %w", entry.Path, err))
			continue
		}
		in.Category = input.CategoryImported
		if _, err := fz.SeedInput(in); err != nil {
			return err
		}
	}
	return nil
}

func writeArchiveHeader(aw *archive.Writer, cfg config.StaticConfig, store *modeling.Store, args []string) error {
	if err := aw.WriteMeta(archive.Meta{Tool: "hoedur", Version: "0.1.0", Timestamp: time.Now()}); err != nil {
		return errutil.Wrap(errutil.IO, "write archive meta: %w", err)
	}
	if err := aw.WriteStaticConfig(cfg.Dump()); err != nil {
		return errutil.Wrap(errutil.IO, "write static config: %w", err)
	}
	if err := aw.WriteTargetConfig(cfg.Target); err != nil {
		return errutil.Wrap(errutil.IO, "write target config: %w", err)
	}
	if err := aw.WriteCmdline(args); err != nil {
		return errutil.Wrap(errutil.IO, "write cmdline: %w", err)
	}
	if err := aw.WriteSeed(cfg.Seed); err != nil {
		return errutil.Wrap(errutil.IO, "write seed: %w", err)
	}
	if store.Len() > 0 {
		if err := aw.WriteModels(store.All()); err != nil {
			return errutil.Wrap(errutil.IO, "write models: %w", err)
		}
	}
	return nil
}

func writeStatistics(aw *archive.Writer, stats *statistics.Statistics) error {
	var buf bytes.Buffer
	if err := stats.History().Encode(&buf); err != nil {
		return errutil.Wrap(errutil.IO, "encode statistics history: %w", err)
	}
	if err := aw.WriteStatisticsExecutions(buf.Bytes()); err != nil {
		return errutil.Wrap(errutil.IO, "write statistics: %w", err)
	}
	return nil
}
