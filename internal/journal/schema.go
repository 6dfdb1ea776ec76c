package journal

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// ErrSchemaMismatch is returned when the file was written by a newer build.
var ErrSchemaMismatch = errors.New("journal schema is newer than this binary")

// initSchema brings the file to schemaVersion. Older or unversioned layouts
// are dropped and recreated: the journal is a diagnostic log, so history from
// an earlier layout is discarded rather than migrated.
func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("%w: %s is version %d, this build reads %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name IN ('deliveries', 'schema_version')",
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("inspect journal tables: %w", err)
	}
	s.rebuilt = existing > 0

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		"DROP TABLE IF EXISTS deliveries",
		"DROP TABLE IF EXISTS schema_version",
		schemaSQL,
		fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild journal schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Rebuilt reports whether Open discarded an older journal layout.
func (s *Store) Rebuilt() bool {
	return s != nil && s.rebuilt
}
