package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const schemaVersion = 1

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER NOT NULL
    )`); err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("unsupported schema version %d (expected %d); remove %s to rebuild", version, schemaVersion, s.path)
	}
	return nil
}
