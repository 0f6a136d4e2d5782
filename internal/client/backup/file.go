package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/offsync/internal/filex"
)

// FileSink keeps backups as files in a directory.
type FileSink struct {
	Dir string
}

func (s FileSink) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid backup name %q", name)
	}
	return filepath.Join(s.Dir, name), nil
}

// Write replaces the file atomically.
func (s FileSink) Write(ctx context.Context, name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, data)
}

func (s FileSink) Read(ctx context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
