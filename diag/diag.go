// Package diag is the opt-in debug channel for the FAT32 engine. Operations
// that want to emit free-cluster, free-slot or name-comparison diagnostics
// (see fat.Table.FindFirstFree, dirent.FindFreeSlot and dirent.FindCollision)
// write through a Channel
// instead of printing to the primary output stream; a Channel is a no-op
// until Enable is called, so tests that only assert on result strings are
// unaffected.
package diag

import (
	"github.com/dsoprea/go-logging"
)

// Channel gates diagnostic output behind an explicit opt-in. The zero value
// is disabled.
type Channel struct {
	enabled bool
}

// Enable turns on diagnostic output for this channel.
func (c *Channel) Enable() {
	c.enabled = true
}

// Enabled reports whether diagnostics are currently turned on.
func (c *Channel) Enabled() bool {
	return c.enabled
}

// Printf records a diagnostic message if the channel is enabled. It routes
// through go-logging's error-reporting primitives (Errorf to build the
// message, PrintError to emit it) rather than introducing a second logging
// surface.
func (c *Channel) Printf(format string, args ...interface{}) {
	if !c.enabled {
		return
	}
	log.PrintError(log.Errorf(format, args...))
}
