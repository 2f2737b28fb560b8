package fileactivity

import "errors"

var (
	// ErrInvalidFlags is returned by Manager.Start when the caller passes
	// a zero NotifyFlags value: nothing would ever be subscribed to.
	ErrInvalidFlags = errors.New("fileactivity: invalid notify flags")

	// ErrNoVolumes is returned by Manager.Start when volume enumeration
	// succeeds but finds nothing watchable.
	ErrNoVolumes = errors.New("fileactivity: no volumes available")

	// ErrAlreadyRunning is returned by Manager.Start when the manager is
	// already watching.
	ErrAlreadyRunning = errors.New("fileactivity: manager already running")
)
