package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas - Network map service for permissioned networks",
	Long: `Atlas serves the signed directory of a permissioned distributed
ledger network: which nodes exist, which notaries the network trusts,
and the parameters every participant must share.

Participants publish signed node infos, poll the signed network map,
and fetch parameters by hash. Operators manage notaries, whitelists
and parameter updates through the admin API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Atlas version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
