package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

type Fields = logrus.Fields

// NewLogger returns the process logger. LOG_FORMAT=json switches to one JSON
// object per line for log shippers; LOG_DIR moves the rotated log files.
func NewLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(levelFromEnv())
		logger.SetFormatter(formatterFromEnv())
		logger.SetOutput(io.MultiWriter(outputsFromEnv()...))
		logger.SetReportCaller(true)
	})

	return logger
}

func formatterFromEnv() logrus.Formatter {
	if os.Getenv("LOG_FORMAT") == "json" {
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return shortFunc(f.Function), fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
			},
		}
	}

	return &formatter.Formatter{
		NoColors:        os.Getenv("LOG_NO_COLOR") == "true",
		TimestampFormat: "02 Jan 06 - 15:04:05",
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			return fmt.Sprintf(" \x1b[34m[%s:%d][%s()]", path.Base(f.File), f.Line, shortFunc(f.Function))
		},
	}
}

func outputsFromEnv() []io.Writer {
	writers := []io.Writer{os.Stderr}
	if os.Getenv("APP_ENV") == "test" {
		return writers
	}

	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = "./storage/logs"
	}

	return append(writers, &lumberjack.Logger{
		Filename:   path.Join(dir, fmt.Sprintf("verification-%s.log", time.Now().Format("2006-01-02"))),
		LocalTime:  true,
		Compress:   true,
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
	})
}

func shortFunc(name string) string {
	return name[strings.LastIndex(name, ".")+1:]
}

func levelFromEnv() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

// NewTraceID returns an id that ties a client-visible error to its log line.
func NewTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "unknown"
	}
	return id.String()
}
