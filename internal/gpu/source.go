package gpu

import (
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// SourceLoader returns kernel source text for a path. An unreadable path
// yields an empty string; callers treat that as a compile failure.
type SourceLoader interface {
	Load(path string) string
}

// FileLoader reads kernel sources from the local filesystem.
type FileLoader struct {
	logger *zap.Logger
}

// NewFileLoader creates a loader reading from disk.
func NewFileLoader(logger *zap.Logger) *FileLoader {
	return &FileLoader{logger: logger}
}

// Load reads the whole file at path, or returns "" if it cannot be read.
func (l *FileLoader) Load(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("failed to read kernel source", zap.String("path", path), zap.Error(err))
		return ""
	}
	return string(data)
}

// FSLoader reads kernel sources from an fs.FS, typically the kernels
// embedded in the binary.
type FSLoader struct {
	fsys   fs.FS
	logger *zap.Logger
}

// NewFSLoader creates a loader over fsys.
func NewFSLoader(fsys fs.FS, logger *zap.Logger) *FSLoader {
	return &FSLoader{fsys: fsys, logger: logger}
}

// Load reads name from the filesystem, or returns "" if it cannot be read.
func (l *FSLoader) Load(name string) string {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		l.logger.Warn("failed to read embedded kernel source", zap.String("name", name), zap.Error(err))
		return ""
	}
	return string(data)
}
