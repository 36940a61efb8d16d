package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/archive"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/config"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/emulator"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/input"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/stream"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/trace"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/ui/colorize"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <archive> <input-id>",
		Short: "Replay one corpus input from an archive and report its exit reason",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runFlags.Archive = args[0]
			runFlags.Input = args[1]
			return runReplay()
		},
	}
	cmd.Flags().BoolVar(&runFlags.Disasm, "disasm", false, "print a per-basic-block execution trace")
	return cmd
}

// runReplay opens an archive, rebuilds the target it was produced against,
// replays the named input once, and reports the exit reason — the single
// deterministic reproduction spec.md's `run` verb describes, as opposed to
// the fuzz loop's open-ended corpus growth.
func runReplay() error {
	f, err := os.Open(runFlags.Archive)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open archive %s: %w", runFlags.Archive, err)
	}
	defer f.Close()

	r, err := archive.NewReader(f)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open archive reader %s: %w", runFlags.Archive, err)
	}
	defer r.Close()

	var targetCfg *config.TargetConfig
	var in *input.Input

	for {
		entry, err := r.Next()
		if err != nil {
			break
		}
		switch entry.Kind {
		case archive.KindTargetConfigPath:
			cfg, err := archive.ParseTargetConfig(entry.Data)
			if err != nil {
				return errutil.Wrap(errutil.IO, "parse target config: %w", err)
			}
			targetCfg = &cfg
		case archive.KindCorpusInput:
			if entry.Path != archive.CorpusInputPath(runFlags.Input) {
				continue
			}
			parsed, err := archive.ParseInput(entry.Data)
			if err != nil {
				return errutil.Wrap(errutil.IO, "parse input %s: %w", runFlags.Input, err)
			}
			in = parsed
		}
	}

	if targetCfg == nil {
		return errutil.Wrap(errutil.Config, "archive %s has no target config entry", runFlags.Archive)
	}
	if in == nil {
		return errutil.Wrap(errutil.Config, "archive %s has no input %s", runFlags.Archive, runFlags.Input)
	}

	var collector *trace.Collector
	hooks := emulator.Hooks{}
	if runFlags.Disasm {
		collector = trace.NewCollector()
		hooks = collector.Hooks()
	}

	tgt, err := buildTarget(*targetCfg, patchScript, hooks)
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

	exit := tgt.emu.LastExit()
	counts := tgt.emu.Counts()

	fmt.Printf("%s %s\n", colorize.Detail("input:"), in.ID.String())
	fmt.Printf("%s %s\n", colorize.Detail("exit:"), exit.Kind.String())
	if exit.Detail != "" {
		fmt.Printf("%s %s\n", colorize.Detail("detail:"), exit.Detail)
	}
	fmt.Printf("%s %s  %s %s\n", colorize.Detail("pc:"), colorize.Address(exit.PC), colorize.Detail("counts:"), counts.String())

	if collector != nil {
		printTrace(collector)
	}

	switch exit.Kind {
	case emulator.KindCrash:
		return errutil.Wrap(errutil.Crash, "input %s reproduced a crash: %s", in.ID, exit.Detail)
	case emulator.KindLimitReached:
		return errutil.Wrap(errutil.Limit, "input %s hit an execution limit: %s", in.ID, exit.Detail)
	}
	return nil
}

// printTrace renders collected events through an outputWriter: a replay can
// collect tens of thousands of basic-block events, and writing each
// directly to stdout would serialize the whole print behind blocking I/O.
func printTrace(c *trace.Collector) {
	w := newOutputWriter()

	w.Write("")
	w.Write(colorize.Header("trace:"))

	byPC := c.ByPC()
	addrs := make([]uint32, 0, len(byPC))
	for pc := range byPC {
		addrs = append(addrs, pc)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, pc := range addrs {
		for _, e := range byPC[pc] {
			line := fmt.Sprintf("%s  %s", colorize.Address(pc), colorize.Tag(e.PrimaryTag()))
			if e.Detail != "" {
				line += "  " + colorize.Comment(e.Detail)
			}
			w.Write(line)
		}
	}

	w.Close()
}
