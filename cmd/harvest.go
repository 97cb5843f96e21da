package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pressharvest/internal/discovery"
	"pressharvest/internal/fetch"
	"pressharvest/internal/locator"
	"pressharvest/internal/session"
	"pressharvest/internal/store"
)

const (
	manifestName = "article_urls.csv"

	// Runs larger than this require explicit confirmation.
	confirmThreshold = 100
)

// newHarvestCmd creates the 'harvest' subcommand: download every discovered
// document in resumable parallel batches.
func newHarvestCmd() *cobra.Command {
	var (
		pagePath    string
		sessionPath string
		startIndex  int
		workers     int
		batchSize   int
		resume      bool
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Download all discovered documents",
		Long: `Downloads every document named by the key list, in parallel batches
with retry and checkpointing. Keys come from --page when given, otherwise
from the backup saved by a previous 'keys' run. Already-downloaded articles
are skipped, so an interrupted run can simply be re-invoked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			sess, err := session.Load(sessionPath)
			if err != nil {
				return err
			}

			runDir := a.cfg.RunDir()
			artifacts, err := store.NewArtifactStore(runDir)
			if err != nil {
				return err
			}

			keys, err := resolveKeys(pagePath, runDir)
			if err != nil {
				return err
			}
			a.logger.Info("harvest scope resolved",
				zap.Int("keys", len(keys)),
				zap.String("run_dir", runDir),
			)

			records := locator.Build(a.cfg.Search.BaseURL, keys)
			if err := locator.SaveManifest(filepath.Join(runDir, manifestName), records); err != nil {
				return err
			}

			if len(records) > confirmThreshold && !yes {
				if !confirm(cmd, len(records)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if workers <= 0 {
				workers = a.cfg.Fetch.Workers
			}
			if batchSize <= 0 {
				batchSize = a.cfg.Fetch.BatchSize
			}

			checkpoint := store.NewCheckpointFile(runDir)
			start := startIndex
			if resume {
				if cp, ok, err := checkpoint.Load(); err != nil {
					return err
				} else if ok && cp.LastProcessed > start {
					start = cp.LastProcessed
					a.logger.Info("resuming from checkpoint", zap.Int("start", start))
				}
			}

			fetcher := fetch.NewCollyFetcher(fetch.ClientConfig{
				UserAgent: sess.UserAgent,
				Cookies:   sess.HTTPCookies(),
				Timeout:   a.cfg.Timeout(),
			})
			orchestrator := fetch.NewOrchestrator(
				fetcher,
				fetch.NewLinearRetryPolicy(),
				artifacts,
				checkpoint,
				fetch.Config{
					Workers:         workers,
					BatchSize:       batchSize,
					CheckpointEvery: a.cfg.Fetch.CheckpointEvery,
					BatchPause:      a.cfg.BatchPause(),
				},
				a.logger,
			)

			outcomes, err := orchestrator.Run(cmd.Context(), records, start)
			succeeded, failed := 0, 0
			for _, out := range outcomes {
				if out.Succeeded {
					succeeded++
				} else {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d articles (%d failed) into %s\n", succeeded, failed, runDir)
			if err != nil {
				return fmt.Errorf("harvest interrupted: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "saved results page to extract keys from (falls back to the saved key list)")
	cmd.Flags().StringVar(&sessionPath, "session", "", "exported browser session file (required)")
	cmd.Flags().IntVar(&startIndex, "start-index", 0, "ordinal to start downloading from")
	cmd.Flags().IntVar(&workers, "workers", 0, "download pool width, overrides config")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "articles per batch window, overrides config")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the last checkpoint when it is ahead of --start-index")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the large-run confirmation prompt")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// resolveKeys prefers a fresh page, refreshing the backup only when
// extraction finds keys, and falls back to the key list saved by a previous
// run. An empty extraction never clobbers a good backup.
func resolveKeys(pagePath, runDir string) ([]string, error) {
	backup := filepath.Join(runDir, keyBackupName)
	if pagePath != "" {
		content, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("read results page: %w", err)
		}
		if keys := discovery.Extract(string(content)); len(keys) > 0 {
			if err := discovery.SaveKeys(backup, keys); err != nil {
				return nil, err
			}
			return keys, nil
		}
	}

	keys, err := discovery.LoadKeys(backup)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		if pagePath != "" {
			return nil, fmt.Errorf("no document keys found in %s and no saved key list in %s", pagePath, runDir)
		}
		return nil, fmt.Errorf("no saved key list in %s; run 'keys' first or pass --page", runDir)
	}
	return keys, nil
}

func confirm(cmd *cobra.Command, count int) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "About to download %d articles. Continue? [y/N] ", count)
	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
