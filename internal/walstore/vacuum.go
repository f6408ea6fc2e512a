package walstore

import (
	"context"
	"fmt"
)

// VacuumInto writes a defragmented, consistent copy of the database to
// destPath using SQLite's VACUUM INTO. destPath must not already
// exist. Safe to call concurrently with readers; blocked by any
// in-flight write until it completes.
func (s *Store) VacuumInto(ctx context.Context, destPath string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("%w: vacuum into %s: %v", ErrIO, destPath, err)
	}
	return nil
}
