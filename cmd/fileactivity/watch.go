package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nimblefs/fileactivity"
	"github.com/spf13/cobra"
)

// printTime prints a line prefixed with the time, a bit shorter than
// log.Print since the date isn't useful for a live terminal session.
func printTime(s string, args ...interface{}) {
	fmt.Printf(time.Now().Format("15:04:05.0000")+" "+s+"\n", args...)
}

func newWatchCmd() *cobra.Command {
	var delay, stability time.Duration
	var interval time.Duration
	var recursive bool
	var excludeAppData bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch every enumerated volume and print events as they commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := fileactivity.NewManager(fileactivity.ManagerConfig{
				Interval:        interval,
				DelayProcess:    delay,
				StabilityWindow: stability,
				ExcludeAppData:  excludeAppData,
				Recursive:       recursive,
			})

			i := 0
			mgr.SetSink(func(e fileactivity.Event) {
				i++
				printTime("%3d %s", i, e)
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			flags := fileactivity.NotifyFileName | fileactivity.NotifyAttribute | fileactivity.NotifySecurity | fileactivity.NotifyFolder
			if err := mgr.Start(ctx, flags, recursive); err != nil {
				return err
			}
			defer mgr.Stop()

			printTime("watching %v; press ^C to exit", mgr.Volumes())
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 300*time.Millisecond, "classifier tick interval")
	cmd.Flags().DurationVar(&delay, "delay", 3000*time.Millisecond, "aging gate delay before an entry is ripe")
	cmd.Flags().DurationVar(&stability, "stability", 1000*time.Millisecond, "rename contention stability window")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "watch subdirectories")
	cmd.Flags().BoolVar(&excludeAppData, "exclude-app-data", true, "exclude common per-user cache/config directories")
	return cmd
}
