package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fileactivity",
		Short: "Watch filesystem volumes and print classified activity events",
	}
	root.AddCommand(newWatchCmd())
	root.AddCommand(newPickCmd())
	root.AddCommand(newOpenCmd())
	root.AddCommand(newClipCmd())
	return root
}
