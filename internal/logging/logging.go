// Package logging provides the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger used throughout codewiki.
var Log = logrus.New()

type contextHook struct{}

func (h contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h contextHook) Fire(entry *logrus.Entry) error {
	if pc, file, line, ok := runtime.Caller(8); ok {
		funcName := runtime.FuncForPC(pc).Name()
		entry.Data["func"] = funcName[strings.LastIndex(funcName, "/")+1:]
		entry.Data["file"] = filepath.Base(file)
		entry.Data["line"] = line
	}
	return nil
}

func init() {
	Log.SetFormatter(&logrus.JSONFormatter{
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return filepath.Base(f.Function), filepath.Base(f.File)
		},
	})
	Log.AddHook(contextHook{})
	Log.SetLevel(levelFromEnv())

	var writers []io.Writer
	writers = append(writers, os.Stdout)
	if f, err := os.OpenFile("codewiki.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		writers = append(writers, f)
	}
	Log.SetOutput(io.MultiWriter(writers...))
}

func levelFromEnv() logrus.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
