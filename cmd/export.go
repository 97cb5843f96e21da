package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pressharvest/internal/dataset"
	"pressharvest/internal/locator"
	"pressharvest/internal/store"
)

// newExportCmd creates the 'export' subcommand: normalize all downloaded
// artifacts into one dataset file.
func newExportCmd() *cobra.Command {
	var (
		format  string
		cleanup bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Assemble downloaded articles into a dataset",
		Long: `Normalizes every downloaded article under the run directory, joins in
the URL manifest, and writes one consolidated dataset file. With --cleanup
the raw run files are removed after a successful export; the dataset is
always preserved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.Export.Format
			}

			runDir := a.cfg.RunDir()
			artifacts, err := store.NewArtifactStore(runDir)
			if err != nil {
				return err
			}
			manifest, err := locator.LoadManifest(filepath.Join(runDir, manifestName))
			if err != nil {
				return err
			}

			records, err := dataset.NewAssembler(artifacts, a.logger).Assemble(cmd.Context(), manifest)
			if err != nil {
				return err
			}

			batchName := filepath.Base(runDir)
			path, err := dataset.Export(records, a.cfg.Export.Dir, batchName, format)
			if err != nil {
				return err
			}
			a.logger.Info("dataset exported",
				zap.Int("records", len(records)),
				zap.String("path", path),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), path)

			if cleanup {
				removed, err := store.Cleanup(runDir, path)
				if err != nil {
					return fmt.Errorf("cleanup after export: %w", err)
				}
				a.logger.Info("run directory cleaned", zap.Int("removed", removed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "dataset format: parquet, csv, or jsonl (default from config)")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove raw run files after a successful export")

	return cmd
}
