// Package logger provides the session log file the rest of the application
// writes through. Each run gets its own file; detailed mode additionally
// echoes entries to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger appends timestamped lines to a per-run log file.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	echo     io.Writer
	detailed bool
}

// NewLogger returns an inert logger; Init attaches the file.
func NewLogger() *Logger {
	return &Logger{}
}

// Init opens a fresh log file under logDir. Files are named by date with a
// run counter so multiple sessions on the same day never interleave. When
// detailed is set, every entry is also echoed to stderr.
func (l *Logger) Init(logDir string, detailed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	day := time.Now().Format("2006-01-02")
	existing, _ := filepath.Glob(filepath.Join(logDir, fmt.Sprintf("vizchat_%s_*.log", day)))
	path := filepath.Join(logDir, fmt.Sprintf("vizchat_%s_%d.log", day, len(existing)+1))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	l.file = f
	l.detailed = detailed
	l.echo = os.Stderr
	l.write("Session started")
	return nil
}

// Log writes one entry.
func (l *Logger) Log(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(message)
}

// Logf writes one formatted entry.
func (l *Logger) Logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(fmt.Sprintf(format, args...))
}

func (l *Logger) write(message string) {
	if l.file == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), message)
	l.file.WriteString(line)
	if l.detailed && l.echo != nil {
		io.WriteString(l.echo, line)
	}
}

// Close ends the session log.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.write("Session ended")
		l.file.Close()
		l.file = nil
	}
}
