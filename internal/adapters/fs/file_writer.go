package fs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileWriter replaces files atomically: data goes to a temp file in the
// target's directory, is synced, then renamed over the target. A crash at
// any point leaves either the old or the new file, never a partial one.
type FileWriter struct {
	// BeforeRename runs after the temp file is synced and before it
	// replaces the target. A non-nil error aborts the write.
	BeforeRename func(tmpPath string) error

	syncDir func(dir string) error
	log     *slog.Logger
}

// NewFileWriter creates a new atomic file writer
func NewFileWriter() *FileWriter {
	return &FileWriter{syncDir: syncDir, log: slog.Default()}
}

// WriteJSON marshals v with two-space indentation and writes it to path
func (w *FileWriter) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return w.Write(path, append(data, '\n'))
}

// Write replaces path with data
func (w *FileWriter) Write(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if w.BeforeRename != nil {
		if err = w.BeforeRename(tmpPath); err != nil {
			return err
		}
	}

	// Atomic rename
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	// The new content is in place; a failed directory sync is not a failed write
	if serr := w.syncDir(dir); serr != nil {
		w.log.Warn("file replaced but directory sync failed", "path", path, "error", serr)
	}
	return nil
}

// syncDir flushes the directory entry so the rename survives a crash
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory: %w", err)
	}
	return nil
}
