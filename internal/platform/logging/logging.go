package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	hclog "github.com/hashicorp/go-hclog"
)

// New returns the root logger. Components derive their own with Named.
func New(level string, output io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "focusdeck",
		Level:  hclog.LevelFromString(level),
		Output: output,
	})
}

// NewFile opens (appending) the log file at path. The returned closer must be
// called when the program exits.
func NewFile(level, path string) (hclog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(level, f), f, nil
}
