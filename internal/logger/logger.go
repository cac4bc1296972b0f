// Package logger wraps logrus with the field conventions the rest of the
// engine relies on: every tenant-scoped or job-scoped log line carries
// tenant_id/job_id so operators can grep a single job's lifecycle
// out of a shared stream.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps *logrus.Logger so call sites can keep using the familiar
// WithField/WithError chaining while the engine standardizes construction.
type Logger struct {
	*logrus.Logger
}

// Config controls level and format; output always goes to stdout.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New builds a Logger from Config, defaulting to info/text on any parse error.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l}
}

// NewDefault builds a Logger with sane defaults (info level, text format,
// stdout). The component name is not attached to the log lines it writes.
func NewDefault(component string) *Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stdout)
	return &Logger{Logger: l.WithField("component", component).Logger}
}

// WithTenant scopes the logger to a tenant for the lifetime of a request or
// job invocation.
func (l *Logger) WithTenant(tenantID string) *logrus.Entry {
	return l.Logger.WithField("tenant_id", tenantID)
}

// WithJob scopes the logger to a document job.
func (l *Logger) WithJob(tenantID, jobID string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"tenant_id": tenantID, "job_id": jobID})
}
