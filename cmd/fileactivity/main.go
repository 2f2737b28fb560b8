// Command fileactivity watches one or more volumes and prints the
// classified semantic events the correlation engine commits. It serves as
// an example and debugging tool, in the spirit of the upstream fsnotify
// project's own cmd/fsnotify.
package main

import (
	"fmt"
	"os"
)

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "fileactivity: "+format+"\n", a...)
	os.Exit(1)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exit("%s", err)
	}
}
