// Package logx holds the host-side diagnostic logger. MCU builds print with
// println instead.
package logx

import "log"

// Logf defaults to log.Printf. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger swaps the logger; nil mutes all output.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
