package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/archive"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/statistics"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/ui/colorize"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "Summarize a run archive: target, corpus size, crashes, executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infoArchivePath = args[0]
			return showInfo()
		},
	}
}

func showInfo() error {
	f, err := os.Open(infoArchivePath)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open archive %s: %w", infoArchivePath, err)
	}
	defer f.Close()

	r, err := archive.NewReader(f)
	if err != nil {
		return errutil.Wrap(errutil.IO, "open archive reader %s: %w", infoArchivePath, err)
	}
	defer r.Close()

	var meta archive.Meta
	var staticConfig string
	var numInputs int
	var history *statistics.History

	for {
		entry, err := r.Next()
		if err != nil {
			break
		}
		switch entry.Kind {
		case archive.KindMeta:
			if meta, err = archive.ParseMeta(entry.Data); err != nil {
				return errutil.Wrap(errutil.IO, "parse meta: %w", err)
			}
		case archive.KindStaticConfig:
			staticConfig = archive.ParseStaticConfig(entry.Data)
		case archive.KindCorpusInput:
			numInputs++
		case archive.KindStatisticsExecutions:
			h, err := statistics.DecodeHistory(bytes.NewReader(entry.Data))
			if err != nil {
				errutil.Log(errutil.Wrap(errutil.IO, "decode statistics: %w", err))
				continue
			}
			history = h
		}
	}

	fmt.Printf("%s %s (%s)\n", colorize.Header("hoedur archive"), infoArchivePath, meta.Tool)
	fmt.Printf("%s %s\n", colorize.Detail("written:"), meta.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Println()
	fmt.Print(staticConfig)
	fmt.Println()
	fmt.Printf("%s %d\n", colorize.Detail("corpus inputs:"), numInputs)

	if history != nil && len(history.Samples) > 0 {
		last := history.Samples[len(history.Samples)-1]
		fmt.Printf("%s %s\n", colorize.Detail("elapsed:"), last.Elapsed)
		fmt.Printf("%s %d\n", colorize.Detail("executions:"), last.Executions)
		fmt.Printf("%s %d\n", colorize.Detail("crashes:"), last.Crashes)
		fmt.Printf("%s %d\n", colorize.Detail("timeouts:"), last.Timeouts)
		fmt.Printf("%s %d\n", colorize.Detail("features:"), last.Features)
		fmt.Printf("%s %s\n", colorize.Detail("counts:"), last.TotalCounts.String())
	}

	return nil
}
