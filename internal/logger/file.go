package logger

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig holds settings for file-based log output with rotation.
type FileConfig struct {
	// Path is the log file location.
	Path string
	// MaxSizeMB triggers rotation once the file grows past this size.
	MaxSizeMB int
	// MaxFiles caps how many rotated files are kept around.
	MaxFiles int
}

// NewFileWriter returns an io.Writer backed by a size-rotated log file.
// Rotated files are gzip-compressed.
func NewFileWriter(cfg FileConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		Compress:   true,
	}
}
