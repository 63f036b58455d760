package scheduler

import (
	"io"
	"log"
	"os"

	"github.com/citystash/pickup-sms/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewJobLogger builds the logger shared by the scheduler and pipeline. It
// writes to stdout and to a size-rotated file so job history survives
// restarts and container log rotation.
func NewJobLogger(cfg config.LoggingConfig) *log.Logger {
	if cfg.FilePath == "" {
		return log.New(os.Stdout, "jobs ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotated)
	return log.New(mw, "jobs ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}
