package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log timestamps are always UTC regardless of where the process runs.
type utcFormatter struct {
	logrus.Formatter
}

func (f utcFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Time = entry.Time.UTC()
	return f.Formatter.Format(entry)
}

const timestampFormat = "2006-01-02 15:04:05.000 Z07:00"

func Setup(colors bool, json bool, level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	var inner logrus.Formatter
	if json {
		inner = &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	} else {
		inner = &logrus.TextFormatter{
			TimestampFormat:  timestampFormat,
			FullTimestamp:    true,
			ForceColors:      colors,
			DisableColors:    !colors,
			QuoteEmptyFields: true,
		}
	}
	logrus.SetFormatter(&utcFormatter{inner})
	logrus.SetOutput(os.Stdout)

	return nil
}

// SendToDebugLogger is an adapter for libraries that want a printf-style logger.
type SendToDebugLogger struct{}

func (c *SendToDebugLogger) Printf(format string, args ...interface{}) {
	logrus.Debugf(format, args...)
}
