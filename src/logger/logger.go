package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init replaces the process logger. Output fans out to every writer given.
func Init(level zerolog.Level, writers ...io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if len(writers) == 1 {
		w = writers[0]
	} else if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()

	mu.Lock()
	log = l
	mu.Unlock()
	return &l
}

func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Nop is handy for tests and for components built without a logger.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
