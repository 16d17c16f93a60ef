package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the indexer-agent cobra command tree: `start` for
// single-network mode and `start-multiple` for the multi-network registry
// mode. The mode is chosen only by naming the subcommand; the root command
// does not read INDEXER_AGENT_MULTINETWORK_MODE and, run without a
// subcommand, only prints its usage.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexer-agent",
		Short: "Reconciles on-chain allocation state against indexing rules for one or more protocol networks",
	}

	root.AddCommand(newStartCommand())
	root.AddCommand(newStartMultipleCommand())

	return root
}
