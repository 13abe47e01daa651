package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is usable before InitLogger runs (tests, early startup).
var Log = logrus.New()

// LoggerConfig controls InitLogger.
type LoggerConfig struct {
	Level   string // debug, info, warn, error
	Release bool   // JSON output when true
	File    string // rotated log file, empty disables
}

// InitLogger initializes the structured logger
func InitLogger(cfg LoggerConfig) {
	Log = logrus.New()

	switch cfg.Level {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	default:
		Log.SetLevel(logrus.InfoLevel)
	}

	// JSON for production, Text for development
	if cfg.Release {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		logFile := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // Days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, logFile)
		if cfg.Release {
			out = logFile
		}
	}
	Log.SetOutput(out)

	Log.WithField("level", Log.GetLevel().String()).Info("Logger initialized successfully")
}

func LogInfo(message string, fields map[string]interface{}) {
	Log.WithFields(logrus.Fields(fields)).Info(message)
}

func LogWarn(message string, fields map[string]interface{}) {
	Log.WithFields(logrus.Fields(fields)).Warn(message)
}
