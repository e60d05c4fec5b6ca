package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ConsoleHook mirrors log entries to the console while the JSON stream goes
// to the log file. Warnings and errors land on stderr so they stay visible
// when stdout is redirected.
type ConsoleHook struct {
	out io.Writer
	err io.Writer
}

func NewConsoleHook() *ConsoleHook {
	return &ConsoleHook{out: os.Stdout, err: os.Stderr}
}

func (h *ConsoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	w := h.out
	if entry.Level <= logrus.WarnLevel {
		w = h.err
	}
	_, err = w.Write(line)
	return err
}

func (h *ConsoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
