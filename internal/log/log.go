// Package log is a small leveled logger with key=value trailers, writing to
// stderr through the standard library logger.
package log

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

var (
	mu       sync.Mutex
	minLevel = LevelInfo
	out      = stdlog.New(os.Stderr, "", stdlog.LstdFlags)
)

// SetVerbosity maps the config file's verbosity_level onto a log level:
// 0 errors only, 1 info, 2+ debug.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case v <= 0:
		minLevel = LevelError
	case v == 1:
		minLevel = LevelInfo
	default:
		minLevel = LevelDebug
	}
}

func Debugf(msg string, kv ...any) { write(LevelDebug, "DEBUG", msg, kv) }
func Infof(msg string, kv ...any)  { write(LevelInfo, "INFO", msg, kv) }

func Errorf(msg string, err error, kv ...any) {
	write(LevelError, "ERROR", msg, append([]any{"err", err}, kv...))
}

func write(level Level, tag, msg string, kv []any) {
	mu.Lock()
	enabled := level <= minLevel
	mu.Unlock()
	if !enabled {
		return
	}

	var b strings.Builder
	b.WriteString("[" + tag + "] " + msg)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" " + key + "=" + fmt.Sprint(kv[i+1]))
	}
	out.Println(b.String())
}
