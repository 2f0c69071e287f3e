package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"

	"bus_tracker/internal/config"
)

// Setup builds a Logrus logger writing to a rotating file (and stdout when
// configured) and returns the writer so the HTTP access log can share it.
func Setup(cfg config.LogConfig) (*logrus.Logger, io.Writer) {
	// 1) Lumberjack for file rotation
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   true,
	}

	var out io.Writer = rotator
	if cfg.Stdout {
		out = io.MultiWriter(os.Stdout, rotator)
	}

	// 2) Configure Logrus to write there
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
	}
	log.SetLevel(level)

	return log, out
}
