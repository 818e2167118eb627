package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FilesystemOutput writes each dumped exchange to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates a fresh run directory named after the current
// time inside `dir`. Nothing already in `dir` is touched.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	run, err := os.MkdirTemp(dir, time.Now().Format("20060102-150405-"))
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: run}, nil
}

func (o FilesystemOutput) Directory() string {
	return o.directory
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
