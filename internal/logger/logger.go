package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// New builds the process logger. Console output is always on; when file is
// non-empty a rotating file writer is added as well.
func New(level, file string) arbor.ILogger {
	log := arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	})

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err == nil {
			log = log.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   file,
				TimeFormat: "15:04:05",
				MaxSize:    100 * 1024 * 1024,
				MaxBackups: 3,
				TextOutput: true,
			})
		}
	}

	if level == "" {
		level = "info"
	}
	return log.WithLevelFromString(level)
}

// Discard returns a logger with no writers attached.
func Discard() arbor.ILogger {
	return arbor.NewLogger()
}

// cronLogger routes robfig/cron's internal logging through arbor.
type cronLogger struct {
	log arbor.ILogger
}

// Cron adapts l to the cron.Logger interface.
func Cron(l arbor.ILogger) cron.Logger {
	return cronLogger{log: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Str("kv", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Str("kv", fmt.Sprint(keysAndValues...)).Msg("cron: " + msg)
}
