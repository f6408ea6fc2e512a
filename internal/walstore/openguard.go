package walstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harrison/sessionwal/internal/filelock"
)

// openPaths tracks every database path currently open in this process,
// enforcing spec.md §5's "one open store handle per database path"
// rule. Keyed by the absolute, cleaned path.
var (
	openPathsMu sync.Mutex
	openPaths   = make(map[string]bool)
)

func registerOpenPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	abs = filepath.Clean(abs)

	openPathsMu.Lock()
	defer openPathsMu.Unlock()
	if openPaths[abs] {
		return "", ErrAlreadyOpen
	}
	openPaths[abs] = true
	return abs, nil
}

func unregisterOpenPath(abs string) {
	openPathsMu.Lock()
	defer openPathsMu.Unlock()
	delete(openPaths, abs)
}

// migrationGuard serialises schema migration across processes sharing
// the same database file using filelock.FileLock, an OS advisory lock
// on a sidecar path. SQLite's own locking protects row data; this only
// protects the window between "open" and "schema at latest version",
// which SQLite's locks don't span on their own.
type migrationGuard struct {
	lock *filelock.FileLock
	path string
}

func newMigrationGuard(dbPath string) *migrationGuard {
	if dbPath == ":memory:" || dbPath == "" {
		return nil
	}
	return &migrationGuard{lock: filelock.NewFileLock(dbPath + ".migrate.lock"), path: dbPath}
}

func (g *migrationGuard) withLock(ctx context.Context, fn func(*sql.DB) error, db *sql.DB) error {
	if g == nil {
		return fn(db)
	}
	if err := g.lock.Lock(); err != nil {
		return fmt.Errorf("%w: acquire migration lock for %s: %v", ErrIO, g.path, err)
	}
	defer g.lock.Unlock()
	return fn(db)
}

// ensureParentDir creates the parent directory of a file-based database
// path, mirroring the teacher's NewStore behaviour.
func ensureParentDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
