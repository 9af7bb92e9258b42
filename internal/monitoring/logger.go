// Package monitoring carries the shared diagnostic logger used by the
// streaming and sensor packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf;
// callers may swap it via SetLogger to redirect or silence output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil f installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
