package app

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FileLogger writes timestamped debug lines. It satisfies terminal.Logger.
type FileLogger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewFileLogger creates (or truncates) path and logs into it
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug log: %w", err)
	}
	return &FileLogger{w: f, closer: f}, nil
}

// NewWriterLogger logs into w, which the logger does not close
func NewWriterLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w}
}

// Debugf writes one line prefixed with the wall clock time
func (l *FileLogger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.w, "[%s] %s\n", timestamp, msg)
	if f, ok := l.w.(*os.File); ok {
		f.Sync()
	}
}

// Close closes the underlying file; later Debugf calls are dropped
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w = nil
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
