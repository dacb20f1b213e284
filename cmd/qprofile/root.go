package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/qprofile/version"
)

// configName is the directory under ./cmd searched for config.yml.
const configName = "qprofile"

// NewRootCommand creates the qprofile command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "qprofile",
		Short:         "Live user table served over Server-Sent Events",
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCommand(&ServeOptions{}))
	cmd.AddCommand(NewWatchCommand(&WatchOptions{}))
	return cmd
}
