package mutexwatch

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Location identifies a source position where a lock operation happened.
// The zero value renders as its File field alone, which lets callers use
// symbolic markers (see defaultExitLocation) in place of a real call site.
type Location struct {
	File string
	Line int
}

// Here captures the location of its caller.
func Here() Location {
	return callerLocation(1)
}

func callerLocation(skip int) Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{File: "unknown"}
	}
	return Location{File: file, Line: line}
}

// defaultExitLocation is reported when a Guard is closed while still
// holding its mutex and no exit location was recorded beforehand.
var defaultExitLocation = Location{File: "Guard.Close"}

// IsZero reports whether no location was captured or recorded.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0
}

// String renders the location as "file:line", keeping the full path.
func (l Location) String() string {
	return l.Render(false)
}

// Render formats the location, optionally shortening the file path to its
// base name so reports stay readable when all instrumented code lives in
// one place.
func (l Location) Render(short bool) string {
	file := l.File
	if short {
		file = filepath.Base(file)
	}
	if l.Line == 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, l.Line)
}
