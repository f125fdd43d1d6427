package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/pipeline"
)

var (
	importDryRun   bool
	importVertical string
	importTenant   string
)

// importer is the part of the pipeline used by the import and serve commands.
type importer interface {
	Import(ctx context.Context, in pipeline.Input) (*model.ImportResult, error)
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import spreadsheets, CSVs, PDFs or images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode := "import"
		if importDryRun {
			mode = "dry-run"
		}
		env, err := initPipeline(ctx, mode)
		if err != nil {
			return err
		}
		defer env.Close()

		return importFiles(ctx, env.Pipeline, args, pipeline.Input{
			Vertical: importVertical,
			Tenant:   importTenant,
			DryRun:   importDryRun,
		}, cmd.OutOrStdout())
	},
}

// importFiles imports each file in turn and writes one JSON result per file.
// A failed file does not stop the others; the first failure is returned.
func importFiles(ctx context.Context, imp importer, paths []string, tmpl pipeline.Input, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	var firstErr error
	for _, path := range paths {
		res, err := importFile(ctx, imp, path, tmpl)
		if err != nil {
			zap.L().Error("import failed", zap.String("file", path), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "write result")
		}
	}
	return firstErr
}

func importFile(ctx context.Context, imp importer, path string, tmpl pipeline.Input) (*model.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	in := tmpl
	in.Data = data
	in.Filename = filepath.Base(path)
	return imp.Import(ctx, in)
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "extract and report without writing to the store")
	importCmd.Flags().StringVar(&importVertical, "vertical", "", "business vertical (default from config)")
	importCmd.Flags().StringVar(&importTenant, "tenant", "default", "tenant the entities belong to")
	rootCmd.AddCommand(importCmd)
}
