// Package logging configures the process-wide slog logger: text
// handler, stdout plus a dated file under LOG_DIRECTORY.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Setup installs the default logger and returns a closer for the log
// file. The file is named <prefix>.<YYYY-MM-DD>, matching the daily
// appender of the original deployment.
func Setup(directory, filePrefix, level string) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	name := fmt.Sprintf("%s.%s", filePrefix, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(directory, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))

	return file, nil
}
