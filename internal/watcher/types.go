package watcher

import "time"

// DefaultDebounce is how long a file must be quiet before its change is
// reported. Editors often write a file several times per save.
const DefaultDebounce = 500 * time.Millisecond

// Change is one settled change of a watched input file. Creates, writes and
// rename-saves all settle to a change of an existing file.
type Change struct {
	Path    string
	Removed bool
	At      time.Time
}

func (c Change) String() string {
	if c.Removed {
		return c.Path + " removed"
	}
	return c.Path + " changed"
}

// Handler receives settled changes. It runs on the watcher's goroutine.
type Handler func(Change)
