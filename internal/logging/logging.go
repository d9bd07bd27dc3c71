// Package logging builds the logrus logger shared by the collector and
// adapts it to the interfaces of third-party libraries.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a text logger writing to out at the given level. Accepted
// levels are debug, info, warn (or warning), error and fatal.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	return log, nil
}

// ParseLevel maps a level name to a logrus level. Trace and panic are not
// used by this project and are rejected.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "warning", "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("bad log level %q", level)
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// RetryLogger satisfies retryablehttp.LeveledLogger. The library's error
// level maps to warn since the request is retried.
type RetryLogger struct {
	Log logrus.FieldLogger
}

func (l RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Log.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (l RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.Log.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (l RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Log.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.Log.WithFields(toFields(keysAndValues)).Debug(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		fields["extra"] = keysAndValues[len(keysAndValues)-1]
	}
	return fields
}
