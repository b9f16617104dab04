package common

import (
	"io"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	loggerMu sync.RWMutex
	logger   = log.NewNopLogger()
)

// Logger returns the process wide logger. It is a nop logger until SetLogger is called, so that library users
// and tests do not get any output unless they ask for it.
func Logger() log.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func SetLogger(l log.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// NewLogger creates a logfmt logger writing to w which drops everything below the given level. Unknown level
// names fall back to info.
func NewLogger(w io.Writer, levelName string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	return level.NewFilter(l, levelOption(levelName))
}

func levelOption(name string) level.Option {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
