package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LoadCursor returns the last applied (block, logIndex) for a named stream.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, uint64, bool, error) {
	if name == "" {
		return 0, 0, false, fmt.Errorf("cursor name required")
	}
	var block, logIndex uint64
	row := s.pool.QueryRow(ctx, `SELECT last_block, last_log_index FROM engine_cursors WHERE name=$1`, name)
	if err := row.Scan(&block, &logIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return block, logIndex, true, nil
}

// SaveCursor upserts the applied position for a named stream. Saved only
// after an apply phase commits, so a restart replays nothing already merged.
func (s *Store) SaveCursor(ctx context.Context, name string, block, logIndex uint64) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_cursors (name, last_block, last_log_index, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, last_log_index = EXCLUDED.last_log_index, updated_at = now()
	`, name, int64(block), int64(logIndex))
	return err
}
