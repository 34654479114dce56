package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds a bare root that requires a subcommand, with --help,
// --config, --daemonize, --pidfile attached to "serve" (the only
// subcommand this binary needs).
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voidserved",
		Short: "voidwave HTTP server",
		Long:  "voidserved runs a voidhttp server from a JSON config file.",
	}
	root.AddCommand(newServeCmd())
	return root
}
