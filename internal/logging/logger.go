package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/2beens/planbuilder/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileMaxSizeMB = 50

type LoggerSetupParams struct {
	LogFileName      string
	LogToStdout      bool
	LogLevel         string
	LogFormatJSON    bool
	Environment      string
	ServiceName      string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
	// zero keeps rotated files forever
	MaxBackups int
	MaxAgeDays int
}

// Setup configures the global logrus logger. Sentry failures are logged and
// do not stop the service; an unknown level does.
func Setup(params LoggerSetupParams) error {
	level, ok := GetLevel(params.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level: [%s]", params.LogLevel)
	}
	logrus.SetLevel(level)

	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logrus.AddHook(newFieldsHook(logrus.Fields{
		"service": params.ServiceName,
		"env":     params.Environment,
	}))

	if params.SentryEnabled {
		if err := setupSentry(params); err != nil {
			logrus.Errorf("sentry setup: %s", err)
		} else {
			logrus.Infoln("sentry set up successfully")
		}
	}

	out, err := output(params)
	if err != nil {
		return err
	}
	logrus.SetOutput(out)
	return nil
}

func setupSentry(params LoggerSetupParams) error {
	if params.SentryDSN == "" {
		return fmt.Errorf("sentry enabled but DSN empty")
	}
	err := sentry.Init(sentry.ClientOptions{
		Environment:      params.Environment,
		Dsn:              params.SentryDSN,
		TracesSampleRate: 1.0,
		ServerName:       params.SentryServerName,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	logrus.AddHook(NewSentryHook([]logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}))
	return nil
}

func output(params LoggerSetupParams) (io.Writer, error) {
	if params.LogFileName == "" {
		logrus.Println("writing logs only to STDOUT")
		return os.Stdout, nil
	}

	fileName := params.LogFileName
	if !strings.HasSuffix(fileName, ".log") {
		fileName += ".log"
	}
	if logsDir := pkg.ParentDir(fileName); logsDir != "" {
		exists, err := pkg.PathExists(logsDir, true)
		if err != nil {
			return nil, fmt.Errorf("check logs dir [%s]: %w", logsDir, err)
		}
		if !exists {
			return nil, fmt.Errorf("logs dir [%s] does not exist", logsDir)
		}
	}

	rotated := &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: params.MaxBackups,
		MaxAge:     params.MaxAgeDays,
		LocalTime:  false, // UTC
		Compress:   true,
	}

	if params.LogToStdout {
		logrus.Println("writing logs to file and STDOUT")
		return pkg.NewCombinedWriter(os.Stdout, rotated), nil
	}
	return rotated, nil
}

// GetLevel maps a config level name to a logrus level. Empty means info.
func GetLevel(level string) (logrus.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return logrus.InfoLevel, true
	case "warning":
		return logrus.WarnLevel, true
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, false
	}
	return parsed, true
}

// fieldsHook stamps static fields on every entry that does not set them already.
type fieldsHook struct {
	fields logrus.Fields
}

func newFieldsHook(fields logrus.Fields) *fieldsHook {
	nonEmpty := logrus.Fields{}
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		nonEmpty[k] = v
	}
	return &fieldsHook{fields: nonEmpty}
}

func (h *fieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fieldsHook) Fire(entry *logrus.Entry) error {
	if entry.Data == nil {
		entry.Data = logrus.Fields{}
	}
	for k, v := range h.fields {
		if _, set := entry.Data[k]; !set {
			entry.Data[k] = v
		}
	}
	return nil
}
