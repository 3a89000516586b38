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
	"github.com/iequalsone/committrail/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracking repository and cursor status",
	Long: `Display the current state of the tracking repository.

Shows:
  - Tracking log location and size
  - Unpushed tracking commits
  - Last processed commit per watched repository`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		logPath := filepath.Join(cfg.TrackingRepoPath, cfg.TrackingLogFile)

		fmt.Printf("\n%s committrail status\n\n", ui.RenderAccent("📒"))
		fmt.Printf("Tracking repo: %s\n", cfg.TrackingRepoPath)

		if info, err := os.Stat(logPath); err == nil {
			fmt.Printf("Tracking log:  %s (%s, modified %s)\n",
				logPath, formatSize(info.Size()), info.ModTime().Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("Tracking log:  %s %s\n", logPath, ui.RenderDim("(not created yet)"))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := gitexec.NewClient(gitexec.NewExecutor(""), gitexec.NewResultCache())
		if n, err := client.UnpushedCount(ctx, cfg.TrackingRepoPath); err == nil {
			marker := ui.RenderPass("✓")
			if n > 0 {
				marker = ui.RenderWarn("⚠")
			}
			fmt.Printf("Unpushed:      %s %d commit(s)\n", marker, n)
		}

		store, err := cursor.Open(filepath.Join(cfg.TrackingRepoPath, ".committrail", "cursors.db"))
		if err != nil {
			return fmt.Errorf("failed to open cursor store: %w", err)
		}
		defer store.Close()

		cursors, err := store.All(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\nWatched repositories:\n")
		if len(cursors) == 0 {
			fmt.Printf("  %s\n", ui.RenderDim("(none processed yet)"))
		}
		for _, c := range cursors {
			fmt.Printf("  %s  %s %s\n", c.RepoPath, shortHash(c.LastCommit),
				ui.RenderDim(c.UpdatedAt.Format("2006-01-02 15:04:05")))
		}
		fmt.Println()
		return nil
	},
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
