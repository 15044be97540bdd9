package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the standard logrus logger. Logs go to stderr, and also to
// a rotated file when logFilePath is set. An unknown level falls back to info.
func Init(level, logFilePath string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(output(os.Stderr, logFilePath))
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Init",
			"level":    level,
		}).Warn("Unknown log level, using info")
	}
}

func output(console io.Writer, logFilePath string) io.Writer {
	if logFilePath == "" {
		return console
	}
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		Compress:   false,
	}
	return io.MultiWriter(console, rotator)
}
