package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iequalsone/committrail/internal/config"
	"github.com/iequalsone/committrail/internal/cursor"
	"github.com/iequalsone/committrail/internal/gitexec"
	"github.com/iequalsone/committrail/internal/logger"
	"github.com/iequalsone/committrail/internal/tracker"
	"github.com/iequalsone/committrail/internal/ui"
	"github.com/iequalsone/committrail/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch repositories and mirror new commits (foreground)",
	Long: `Watch the configured repositories for HEAD changes and mirror each new
commit into the tracking repository.

The daemon will:
  1. Watch each repository's .git directory for HEAD changes
  2. Debounce event bursts and skip already-processed commits
  3. Append commit metadata to the tracking log
  4. Commit and push the tracking repository`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if len(cfg.Repositories) == 0 && len(args) == 0 {
			return fmt.Errorf("no repositories configured; add them to the config or pass them as arguments")
		}
		repos := append(cfg.Repositories, args...)

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
			QuietWindow:      cfg.DebounceWindow,
			FlushInterval:    time.Duration(cfg.UpdateFrequencyMinutes) * time.Minute,
		}, client, store, log)
		if err != nil {
			return err
		}

		w, err := watch.New()
		if err != nil {
			return err
		}
		if err := w.Start(repos...); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		t.Start(ctx)
		defer t.Stop()

		fmt.Printf("%s Watching %d repositories\n", ui.RenderAccent("👁"), len(repos))
		fmt.Printf("   Tracking repo: %s\n", cfg.TrackingRepoPath)
		fmt.Printf("   Tracking log:  %s\n", t.TrackingLogPath())
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		for {
			select {
			case <-ctx.Done():
				fmt.Printf("\n%s Shutting down\n", ui.RenderDim("…"))
				_ = w.Stop()
				return nil
			case ev, ok := <-w.Events():
				if !ok {
					return nil
				}
				t.HandleEvent(ev)
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				log.Warn("watcher error: %v", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
