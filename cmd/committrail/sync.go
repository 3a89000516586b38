package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/iequalsone/committrail/internal/config"
	"github.com/iequalsone/committrail/internal/cursor"
	"github.com/iequalsone/committrail/internal/gitexec"
	"github.com/iequalsone/committrail/internal/logger"
	"github.com/iequalsone/committrail/internal/tracker"
	"github.com/iequalsone/committrail/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync [repository...]",
	Short: "Mirror each repository's current HEAD once",
	Long: `Process the current HEAD of each given repository immediately, without
starting the watch daemon. Commits already recorded are skipped.

Useful after the daemon was down, or from scripts and hooks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		repos := args
		if len(repos) == 0 {
			repos = cfg.Repositories
		}
		if len(repos) == 0 {
			if wd, err := os.Getwd(); err == nil {
				repos = []string{wd}
			}
		}

		log := logger.New(cfg.EnableFileLogging, cfg.LogFilePath, verbose || cfg.Verbose)
		defer log.Close()

		store, err := cursor.Open(filepath.Join(cfg.TrackingRepoPath, ".committrail", "cursors.db"))
		if err != nil {
			return fmt.Errorf("failed to open cursor store: %w", err)
		}
		defer store.Close()

		client := gitexec.NewClient(gitexec.NewExecutor(""), gitexec.NewResultCache())

		t, err := tracker.New(tracker.Options{
			TrackingRepoPath: cfg.TrackingRepoPath,
			TrackingLogFile:  cfg.TrackingLogFile,
			ExcludedBranches: cfg.ExcludedBranches,
		}, client, store, log)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		failed := 0
		for _, repo := range repos {
			res, err := t.SyncOnce(ctx, repo)
			if err != nil {
				fmt.Printf("%s %s: %v\n", ui.RenderFail("✗"), repo, err)
				failed++
				continue
			}
			switch res.Outcome {
			case tracker.OutcomeNothingToCommit:
				if res.Reason == tracker.ReasonBranchExcluded {
					fmt.Printf("%s %s: skipped (excluded branch)\n", ui.RenderDim("·"), repo)
				} else {
					fmt.Printf("%s %s: already up to date\n", ui.RenderDim("·"), repo)
				}
			case tracker.OutcomeLocalOnly:
				fmt.Printf("%s %s: recorded (%s)\n", ui.RenderWarn("⚠"), repo, res.Reason)
			default:
				fmt.Printf("%s %s: recorded and %s\n", ui.RenderPass("✓"), repo, res.Outcome)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d repositories failed", failed, len(repos))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
