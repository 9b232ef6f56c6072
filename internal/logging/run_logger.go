package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDir is where run logs are written
const DefaultDir = "review_logs"

// RunLogger keeps the audit log of one review run: structured events plus
// the raw text every source produced
type RunLogger struct {
	runID     string
	path      string
	logFile   *os.File
	logger    zerolog.Logger
	mutex     sync.Mutex
	startTime time.Time
}

// StartRunLogging creates dir/run_<id>_<timestamp>.log. Events logged
// through Logger go to both the console configured by Setup and the file.
// The file records every level.
func StartRunLogging(dir, runID string) (*RunLogger, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("run_%s_%s.log", runID, timestamp))
	logFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	r := &RunLogger{
		runID:     runID,
		path:      path,
		logFile:   logFile,
		startTime: time.Now(),
	}

	level := log.Logger.GetLevel()
	writer := zerolog.MultiLevelWriter(
		&zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: console}, Level: level},
		&lockedWriter{r: r},
	)
	r.logger = zerolog.New(writer).With().Timestamp().Str("run_id", runID).Logger()

	r.writeRaw(fmt.Sprintf("=== PANTHEON REVIEW RUN %s ===\nStarted: %s\n\n",
		runID, r.startTime.Format(time.RFC3339)))
	return r, nil
}

// Logger returns the run-scoped logger
func (r *RunLogger) Logger() zerolog.Logger {
	if r == nil {
		return zerolog.Nop()
	}
	return r.logger
}

// Path returns the log file path
func (r *RunLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// LogResponse stores the raw text of one source
func (r *RunLogger) LogResponse(sourceID, text string) {
	if r == nil {
		return
	}
	r.writeRaw(fmt.Sprintf("\n--- RESPONSE %s (%d chars) ---\n%s\n--- END RESPONSE %s ---\n\n",
		sourceID, len(text), strings.TrimRight(text, "\n"), sourceID))
}

// Close writes the footer and closes the file
func (r *RunLogger) Close() {
	if r == nil {
		return
	}
	r.writeRaw(fmt.Sprintf("\n=== RUN COMPLETED in %v ===\n", time.Since(r.startTime).Round(time.Millisecond)))

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.logFile != nil {
		r.logFile.Close()
		r.logFile = nil
	}
}

func (r *RunLogger) writeRaw(s string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.logFile == nil {
		return
	}
	r.logFile.WriteString(s)
}

// lockedWriter serialises structured events with raw response dumps
type lockedWriter struct {
	r *RunLogger
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.r.mutex.Lock()
	defer w.r.mutex.Unlock()
	if w.r.logFile == nil {
		return len(p), nil
	}
	return w.r.logFile.Write(p)
}
