package logger

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.elastic.co/ecslogrus"
)

// CreateLogger builds the process logger. Format is text, json or ecs.
func CreateLogger(serviceName, level, format string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch format {
	case "ecs":
		l.SetFormatter(&ecslogrus.Formatter{})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l.WithField("service", serviceName)
}
