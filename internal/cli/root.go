// Package cli provides the command-line interface for mpdraft.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/selfboot/mpdraft/internal/config"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "mpdraft",
	Short: "Publish static blog articles as WeChat Official Account drafts",
	Long: "mpdraft takes articles already rendered by the site generator, adapts their HTML to what the " +
		"WeChat editor renders, moves their images into the account's media store, and submits them as drafts.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mpdraft %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", config.DefaultConfigDir, "config directory")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
