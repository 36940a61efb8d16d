package main

import (
	"github.com/spf13/cobra"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/log"
)

var fuzzFlags config.FuzzFlags
var runFlags config.RunFlags
var infoArchivePath string
var importModelsOut string
var patchScript string

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hoedur",
		Short: "Coverage-guided fuzzer for ARM Cortex-M firmware",
		Long: `hoedur emulates ARM Cortex-M firmware under Unicorn Engine, feeding
mutated MMIO read sequences to the target and tracking edge-hash basic
block coverage. Inputs that reach new coverage are kept in a growing
corpus; inputs that crash the target are archived for reproduction.

Examples:
  hoedur --firmware fw.bin --archive-dir out/          # start fuzzing
  hoedur run out/run.tar.zst <input-id>                # replay a crash
  hoedur info out/run.tar.zst                           # summarize a run
  hoedur import-models mmio_models.yml models.yml       # convert models`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE:                  runFuzz,
	}

	bindFuzzFlags(root)
	root.AddCommand(runCmd())
	root.AddCommand(infoCmd())
	root.AddCommand(importModelsCmd())
	root.AddCommand(runSingleCmd())

	return root
}

func bindFuzzFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fuzzFlags.Name, "name", "", "run name, recorded in the archive's static config")
	cmd.Flags().StringVar(&fuzzFlags.Firmware, "firmware", "", "firmware image to load (ELF or flat binary)")
	cmd.Flags().StringVar(&fuzzFlags.Seed, "seed", "", "file holding an 8-byte big-endian PRNG seed")
	cmd.Flags().StringArrayVar(&fuzzFlags.PrefixInput, "prefix-input", nil, "seed corpus input file (repeatable)")
	cmd.Flags().StringArrayVar(&fuzzFlags.ImportCorpus, "import-corpus", nil, "archive to import corpus inputs from (repeatable)")
	cmd.Flags().BoolVar(&fuzzFlags.Snapshots, "snapshots", true, "recorded in the run's config; the baseline VM snapshot is restored between executions either way")
	cmd.Flags().BoolVar(&fuzzFlags.Statistics, "statistics", true, "record periodic statistics samples")
	cmd.Flags().StringVar(&fuzzFlags.ArchiveDir, "archive-dir", ".", "directory the run archive is written into")
	cmd.Flags().StringVar(&fuzzFlags.LogConfig, "log-config", "", "path to a zap logging config file (accepted but not read; the log level follows --verbose)")
	cmd.Flags().StringVar(&fuzzFlags.ModelsPath, "models", "", "MMIO model set (plain YAML, as written by import-models)")
	cmd.Flags().BoolVarP(&fuzzFlags.Quiet, "quiet", "q", false, "suspend the live TUI and summary output")
	cmd.Flags().BoolVarP(&fuzzFlags.Verbose, "verbose", "v", false, "debug-level logging")
	cmd.Flags().StringVar(&patchScript, "patch-script", "", "goja patch script applied to firmware memory before running")
}

func initLogging(verbose bool) {
	log.Init(verbose)
}
