// file: logger/logger.go

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is usable before Init is
// called so that packages can log during tests without extra setup.
var Log = logrus.New()

// Init configures the logger with a JSON formatter writing to stdout at info level.
func Init() {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{})
	Log.SetLevel(logrus.InfoLevel)
}

// SetLevel parses level and applies it, keeping the current level on bad input.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Log.WithError(err).WithField("level", level).Warn("Unknown log level, keeping current")
		return
	}
	Log.SetLevel(lvl)
}
