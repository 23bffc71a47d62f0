package store

import (
	"context"
	"database/sql"
	"strconv"
)

const idCounterKey = "sys_task_counter"

// CancelFunc is invoked with the id of a pre-existing row before it is
// recycled, so the caller can stop whatever worker currently owns it.
// Wired by internal/queue's running registry.
type CancelFunc func(id int)

// NextID returns (sys_task_counter + 1) mod 10000, wrapping 9999 back to
// 1 (spec §4.4/§9: a 9999-slot ring to keep UI ids short). If a row with
// that id already exists it is deleted first — the caller must cancel any
// running worker for it before calling NextID, or pass a CancelFunc via
// NextIDCancel.
func (s *Store) NextID(ctx context.Context) (int, error) {
	return s.NextIDCancel(ctx, nil)
}

// NextIDCancel is NextID but invokes cancel (if non-nil) on the id being
// recycled before deleting its row, inside the same transaction's logical
// scope (cancel itself is a synchronous in-memory signal, not part of the
// SQL transaction, but is called before the delete commits).
func (s *Store) NextIDCancel(ctx context.Context, cancel CancelFunc) (int, error) {
	var next int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var cur int
		err := tx.QueryRowContext(ctx, `SELECT value FROM config WHERE key=?`, idCounterKey).Scan(&cur)
		if err == sql.ErrNoRows {
			cur = 0
		} else if err != nil {
			return err
		}
		next = (cur % 9999) + 1

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id=?)`, next).Scan(&exists); err != nil {
			return err
		}
		if exists {
			if cancel != nil {
				cancel(next)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, next); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO config (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			idCounterKey, strconv.Itoa(next))
		return err
	})
	return next, err
}
