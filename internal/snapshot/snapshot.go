// Package snapshot implements the backup path behind "walctl vacuum":
// a SQLite VACUUM INTO to a scratch file, locked and renamed into
// place atomically so a reader never observes a half-written backup,
// adapted from the teacher's internal/filelock atomic-write idiom.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/sessionwal/internal/filelock"
)

// VacuumStore is the subset of walstore.Store this package needs.
type VacuumStore interface {
	VacuumInto(ctx context.Context, destPath string) error
}

// Result reports the outcome of a Backup call.
type Result struct {
	Path       string
	BeforeSize int64
	AfterSize  int64
}

// Backup locks destPath, vacuums s into a temp file beside it, and
// renames that file into place. srcPath is used only to report BeforeSize; it
// is never opened directly (s already owns the live connection to it).
func Backup(ctx context.Context, s VacuumStore, srcPath, destPath string) (Result, error) {
	lock := filelock.NewFileLock(destPath + ".lock")
	if err := lock.Lock(); err != nil {
		return Result{}, fmt.Errorf("acquire snapshot lock for %s: %w", destPath, err)
	}
	defer lock.Unlock()

	before, _ := fileSize(srcPath)

	tmpPath, err := scratchPath(destPath)
	if err != nil {
		return Result{}, err
	}

	if err := s.VacuumInto(ctx, tmpPath); err != nil {
		os.Remove(tmpPath)
		return Result{}, err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("rename snapshot into place: %w", err)
	}

	after, _ := fileSize(destPath)
	return Result{Path: destPath, BeforeSize: before, AfterSize: after}, nil
}

// scratchPath reserves a unique path beside destPath for VACUUM INTO,
// which refuses to write to a file that already exists.
func scratchPath(destPath string) (string, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".vacuum-*.db")
	if err != nil {
		return "", fmt.Errorf("reserve scratch file: %w", err)
	}
	path := f.Name()
	f.Close()
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("clear scratch file: %w", err)
	}
	return path, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
