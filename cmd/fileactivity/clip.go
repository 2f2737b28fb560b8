package main

import (
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

func newClipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clip [path]",
		Short: "Copy path to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clipboard.WriteAll(args[0])
		},
	}
}
