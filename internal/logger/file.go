package logger

import (
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFile creates a zerolog.Logger writing JSON lines to a size-rotated
// file, for worker processes whose stdout is not collected. The file is
// rotated at maxSizeMB megabytes, at most maxFiles rotated files are
// retained, and rotated files are gzip-compressed.
func NewFile(level, path string, maxSizeMB, maxFiles int) zerolog.Logger {
	return NewWithWriter(level, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxFiles,
		Compress:   true,
	})
}
