package mylog

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/MarcGrol/coursebackend/lib/mycontext"
)

var standardBackend = newStandardBackend()

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newStandardLogger
	}
}

func newStandardBackend() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.DebugLevel)
	return l
}

type standardLogger struct {
	componentName string
	backend       *logrus.Logger
}

func newStandardLogger(componentName string) Logger {
	return standardLogger{
		componentName: componentName,
		backend:       standardBackend,
	}
}

func (l standardLogger) Log(ctx context.Context, traceLabel string, severity Severity, format string, a ...any) {
	fields := logrus.Fields{"component": l.componentName}
	if traceLabel != "" {
		fields["aggregate"] = traceLabel
	}
	if trace := mycontext.TraceFromContext(ctx); trace != "" {
		fields["trace"] = trace
	}
	l.backend.WithFields(fields).Log(toLogrusLevel(severity), fmt.Sprintf(format, a...))
}

func toLogrusLevel(severity Severity) logrus.Level {
	switch severity {
	case SeverityDebug:
		return logrus.DebugLevel
	case SeverityWarn:
		return logrus.WarnLevel
	case SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
