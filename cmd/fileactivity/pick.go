package main

import (
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/nimblefs/fileactivity"
	"github.com/spf13/cobra"
)

func newPickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Fuzzy-pick one enumerated volume and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			volumes, err := fileactivity.EnumerateVolumes()
			if err != nil {
				return err
			}
			idx, err := fuzzyfinder.Find(volumes, func(i int) string {
				return volumes[i].Label
			})
			if err != nil {
				return err
			}
			printTime("%s", volumes[idx].Root)
			return nil
		},
	}
}
