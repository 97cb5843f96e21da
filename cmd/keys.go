package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pressharvest/internal/discovery"
	"pressharvest/internal/store"
)

const keyBackupName = "doc_keys.json"

// newKeysCmd creates the 'keys' subcommand: extract document keys from a
// saved results page and back them up for later harvest runs.
func newKeysCmd() *cobra.Command {
	var pagePath string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Extract document keys from a saved results page",
		Long: `Reads a rendered results page from disk, extracts the document key
list, and saves it under the run directory so 'harvest' can reuse it even
when the page is no longer available.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := extractKeysFromPage(pagePath)
			if err != nil {
				return err
			}

			runDir := a.cfg.RunDir()
			if _, err := store.NewArtifactStore(runDir); err != nil {
				return err
			}
			backup := filepath.Join(runDir, keyBackupName)
			if err := discovery.SaveKeys(backup, keys); err != nil {
				return err
			}

			a.logger.Info("document keys extracted",
				zap.Int("keys", len(keys)),
				zap.String("backup", backup),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d document keys to %s\n", len(keys), backup)
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "path to the saved results page (required)")
	_ = cmd.MarkFlagRequired("page")

	return cmd
}

func extractKeysFromPage(pagePath string) ([]string, error) {
	content, err := os.ReadFile(pagePath)
	if err != nil {
		return nil, fmt.Errorf("read results page: %w", err)
	}
	keys := discovery.Extract(string(content))
	if len(keys) == 0 {
		return nil, fmt.Errorf("no document keys found in %s", pagePath)
	}
	return keys, nil
}
