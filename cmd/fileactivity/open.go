package main

import (
	"path/filepath"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [path]",
		Short: "Open the containing folder of path in the OS file manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return open.Run(filepath.Dir(args[0]))
		},
	}
}
