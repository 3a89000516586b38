// committrail mirrors commit activity from local git repositories into a
// tracking repository and keeps that repository pushed to its remote.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "committrail",
	Short: "Mirror local commit activity into a tracking repository",
	Long: `committrail watches local git repositories, detects new commits on
tracked branches, and appends their metadata to a log file inside a
separate tracking repository, which it then commits and pushes.

Configuration is read from committrail.yaml (current directory or
~/.config/committrail/), environment variables (COMMITTRAIL_*), and
flags.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
