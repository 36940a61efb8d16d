package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/archive"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/stream"
)

var runSingleTargetConfig string
var runSingleInputFile string

// runSingleCmd is hidden: it is never invoked directly by a user, only by
// confirmCrash re-executing this same binary as a child process. Go has no
// safe fork()-and-continue the way the reference implementation's
// common/src/fork.rs does post-fork in the same address space (nix::fork);
// re-exec is the idiomatic Go substitute for isolating one execution that
// might bring down the whole process (a native Unicorn-side fault) from the
// fuzzer loop driving thousands of others.
func runSingleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "run-single",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle()
		},
	}
	cmd.Flags().StringVar(&runSingleTargetConfig, "target-config", "", "path to a YAML-encoded target config")
	cmd.Flags().StringVar(&runSingleInputFile, "input", "", "path to a gob-encoded input")
	return cmd
}

func runSingle() error {
	cfgData, err := os.ReadFile(runSingleTargetConfig)
	if err != nil {
		return errutil.Wrap(errutil.IO, "read target config %s: %w", runSingleTargetConfig, err)
	}
	cfg, err := archive.ParseTargetConfig(cfgData)
	if err != nil {
		return errutil.Wrap(errutil.Config, "parse target config: %w", err)
	}

	inData, err := os.ReadFile(runSingleInputFile)
	if err != nil {
		return errutil.Wrap(errutil.IO, "read input %s: %w", runSingleInputFile, err)
	}
	in, err := archive.DecodeInput(inData)
	if err != nil {
		return errutil.Wrap(errutil.Config, "decode input: %w", err)
	}

	tgt, err := buildTarget(cfg, "", emulator.Hooks{})
	if err != nil {
		return err
	}
	defer tgt.Close()

	entries := make([]stream.Entry, len(in.Stream))
	for i, e := range in.Stream {
		entries[i] = stream.Entry{Context: e.Context, Value: e.Value}
	}
	tgt.emu.SetReplayStream(stream.FromAccessLog(entries))

	if err := tgt.emu.Run(tgt.entry); err != nil {
		return errutil.Wrap(errutil.Emulator, "run input %s: %w", in.ID, err)
	}

	switch tgt.emu.LastExit().Kind {
	case emulator.KindCrash:
		os.Exit(runSingleExitCrash)
	case emulator.KindLimitReached:
		os.Exit(runSingleExitLimit)
	}
	return nil
}

const (
	runSingleExitOK    = 0
	runSingleExitCrash = 1
	runSingleExitLimit = 2
)

// confirmCrash re-verifies a suspected crash in a fresh child process before
// it is committed to the archive, translating the child's exit status into
// a boolean exactly as common/src/fork.rs's waitpid match does: a clean
// exit (status 0) means not reproduced, runSingleExitCrash means confirmed,
// and any other outcome — an unexpected exit code or death by signal, which
// Go surfaces as a non-nil *exec.ExitError with no ExitCode() match — is
// treated as confirmation too, since a native-level fault escaping run-single
// entirely is itself evidence the target crashed.
func confirmCrash(cfg config.TargetConfig, in *input.Input) (bool, error) {
	cfgData, err := yaml.Marshal(cfg)
	if err != nil {
		return false, errutil.Wrap(errutil.IO, "encode target config for run-single: %w", err)
	}
	cfgFile, err := os.CreateTemp("", "hoedur-target-config-*.yml")
	if err != nil {
		return false, errutil.Wrap(errutil.IO, "create temp target config: %w", err)
	}
	defer os.Remove(cfgFile.Name())
	if _, err := cfgFile.Write(cfgData); err != nil {
		cfgFile.Close()
		return false, errutil.Wrap(errutil.IO, "write temp target config: %w", err)
	}
	cfgFile.Close()

	inData, err := archive.EncodeInput(in)
	if err != nil {
		return false, errutil.Wrap(errutil.IO, "encode input for run-single: %w", err)
	}
	inFile, err := os.CreateTemp("", "hoedur-input-*.bin")
	if err != nil {
		return false, errutil.Wrap(errutil.IO, "create temp input: %w", err)
	}
	defer os.Remove(inFile.Name())
	if _, err := inFile.Write(inData); err != nil {
		inFile.Close()
		return false, errutil.Wrap(errutil.IO, "write temp input: %w", err)
	}
	inFile.Close()

	self, err := os.Executable()
	if err != nil {
		return false, errutil.Wrap(errutil.IO, "resolve own executable path: %w", err)
	}

	cmd := exec.Command(self, "run-single", "--target-config", cfgFile.Name(), "--input", inFile.Name())
	err = cmd.Run()
	if err == nil {
		return false, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false, errutil.Wrap(errutil.Emulator, "launch run-single child: %w", err)
	}
	return exitErr.ExitCode() != runSingleExitOK, nil
}
