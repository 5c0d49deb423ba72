package logging

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// FileLogger writes JSON lines to logPath and mirrors them to stderr.
// The returned file must be closed by the caller on shutdown.
func FileLogger(level logrus.Level, logPath string) (*os.File, *logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(f)
	logger.AddHook(&mirrorHook{logger: ConsoleLogger(level)})
	return f, logger, nil
}

type mirrorHook struct {
	logger *logrus.Logger
}

func (h *mirrorHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *mirrorHook) Fire(entry *logrus.Entry) error {
	h.logger.WithFields(entry.Data).Log(entry.Level, entry.Message)
	return nil
}
