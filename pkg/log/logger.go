package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// New creates the process logger: text output with full timestamps at the given level.
// An unknown level falls back to info and is reported as an error alongside the logger.
func New(levelStr string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logger, fmt.Errorf("invalid log level '%s', using 'info': %w", levelStr, err)
	}
	logger.SetLevel(level)
	return logger, nil
}
