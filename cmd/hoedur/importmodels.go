package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/archive"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/errutil"
	"github.com/fuzzware-fuzzer/hoedur-go/internal/modeling"
)

func importModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-models <mmio_models.yml> <out.yml>",
		Short: "Convert a fuzzware mmio_models.yml into hoedur's plain-YAML model format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			importModelsOut = args[1]
			return importModels(args[0])
		},
	}
	return cmd
}

func importModels(fuzzwarePath string) error {
	data, err := os.ReadFile(fuzzwarePath)
	if err != nil {
		return errutil.Wrap(errutil.IO, "read fuzzware models %s: %w", fuzzwarePath, err)
	}

	models, err := modeling.ImportFuzzwareModels(data)
	if err != nil {
		return errutil.Wrap(errutil.Config, "import fuzzware models %s: %w", fuzzwarePath, err)
	}

	out, err := archive.EncodeModelsYAML(models)
	if err != nil {
		return errutil.Wrap(errutil.IO, "encode models: %w", err)
	}

	if err := os.WriteFile(importModelsOut, out, 0o644); err != nil {
		return errutil.Wrap(errutil.IO, "write %s: %w", importModelsOut, err)
	}
	return nil
}
