package fileactivity

// Volume describes one watchable root the manager enumerates at Start.
type Volume struct {
	// Root is the path to pass to a Driver's Add.
	Root string
	// Label is a human-readable name (drive letter, mount label) for
	// logging and CLI display.
	Label string
}
