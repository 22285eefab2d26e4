// Package applog wraps charmbracelet/log with the bracketed-tag message
// convention cmdHandlers.go used with the standard logger ("[http] ...",
// "[ingest] ..."), so call sites read the same but get structured key-value
// fields alongside the message.
package applog

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds a logger tagged with a component name, e.g. applog.New("http").
func New(tag string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "[" + tag + "]",
	})
	return l
}
