package trellis

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Location is where a binding was authored.
type Location struct {
	File     string
	Line     int
	Function string
}

// String renders the location as "at pkg.Func(file.go:12)".
func (l *Location) String() string {
	if l == nil {
		return "at <unknown binding location>"
	}

	if l.Function == "" {
		return fmt.Sprintf("at %s:%d", filepath.Base(l.File), l.Line)
	}

	return fmt.Sprintf("at %s(%s:%d)", l.Function, filepath.Base(l.File), l.Line)
}

// CallerLocation captures the location of the caller skip frames up.
// It skips frames that belong to this package so module helpers report the
// user's call site.
func CallerLocation(skip int) *Location {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !isOwnFrame(frame.Function) {
			return &Location{File: frame.File, Line: frame.Line, Function: shortFunction(frame.Function)}
		}

		if !more {
			return nil
		}
	}
}

const ownPackage = "github.com/xraph/trellis."

func isOwnFrame(fn string) bool {
	return strings.HasPrefix(fn, ownPackage) && !strings.HasPrefix(fn, ownPackage+"Test")
}

func shortFunction(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		return fn[i+1:]
	}

	return fn
}
