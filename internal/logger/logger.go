package logger

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a prefixed logger. With a file path it writes to a
// size-rotated log file, otherwise to stderr.
func New(prefix, filePath string) *log.Logger {
	var out io.Writer = os.Stderr
	if filePath != "" {
		out = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return log.New(out, prefix, log.LstdFlags|log.Lmsgprefix)
}
