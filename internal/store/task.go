package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is one of the task's terminal or in-flight states (spec §3).
type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusPendingUpload Status = "pending_upload"
	StatusUploading     Status = "uploading"
	StatusUploaded      Status = "uploaded"
	StatusDirty         Status = "dirty"
	StatusError         Status = "error"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether status will never transition further without
// operator action (retry/delete).
func (s Status) Terminal() bool {
	switch s {
	case StatusUploaded, StatusDirty, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Stage says which pool a task belongs to — an explicit column replacing
// the source's log-substring heuristic (spec §9 open question).
type Stage string

const (
	StageDetect Stage = "detect"
	StageUpload Stage = "upload"
)

// Overrides shadows selected settings for one task only. Passed holds the
// checkpointed audio segment names already verified clean; DirectUpload
// short-circuits detection entirely.
type Overrides struct {
	Passed       []string          `json:"passed,omitempty"`
	DirectUpload bool              `json:"direct_upload,omitempty"`
	Settings     map[string]string `json:"settings,omitempty"`
}

// HasPassed reports whether segment name has already been checkpointed.
func (o Overrides) HasPassed(name string) bool {
	for _, p := range o.Passed {
		if p == name {
			return true
		}
	}
	return false
}

// Task is the unit of work persisted by the store (spec §3).
type Task struct {
	ID          int
	Filename    string
	Filepath    string
	Status      Status
	Stage       Stage
	Progress    int
	Log         string
	CreatedAt   time.Time
	FinishedAt  *time.Time
	RetryCount  int
	Overrides   Overrides
	UploadSpeed float64
	UploadETA   int
}

// maxLogBytes bounds the user-visible log column's growth (spec §9 open
// question: "a cap is not present in the source").
const maxLogBytes = 20_000

var ErrNotFound = errors.New("task not found")

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var createdAt string
	var finishedAt sql.NullString
	var overridesJSON string
	err := row.Scan(&t.ID, &t.Filename, &t.Filepath, &t.Status, &t.Stage, &t.Progress,
		&t.Log, &createdAt, &finishedAt, &t.RetryCount, &overridesJSON, &t.UploadSpeed, &t.UploadETA)
	if err != nil {
		return Task{}, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if finishedAt.Valid {
		ts, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err == nil {
			t.FinishedAt = &ts
		}
	}
	if overridesJSON != "" {
		_ = json.Unmarshal([]byte(overridesJSON), &t.Overrides)
	}
	return t, nil
}

const taskColumns = `id, filename, filepath, status, stage, progress, log, created_at, finished_at, retry_count, overrides_json, upload_speed, upload_eta`

// Create inserts a new task allocated via NextID and returns it.
func (s *Store) Create(ctx context.Context, filename, filepath string, overrides Overrides) (Task, error) {
	return s.CreateCancellable(ctx, filename, filepath, overrides, nil)
}

// CreateCancellable is Create but routes id recycling through
// NextIDCancel, so a caller that owns a running registry (internal/api's
// Adapter) can stop whatever worker currently owns the id being reused
// before its row is deleted out from under it (spec §4.4/§9).
func (s *Store) CreateCancellable(ctx context.Context, filename, filepath string, overrides Overrides, cancel CancelFunc) (Task, error) {
	id, err := s.NextIDCancel(ctx, cancel)
	if err != nil {
		return Task{}, fmt.Errorf("allocate id: %w", err)
	}
	t := Task{
		ID:        id,
		Filename:  filename,
		Filepath:  filepath,
		Status:    StatusPending,
		Stage:     StageDetect,
		CreatedAt: time.Now().UTC(),
		Overrides: overrides,
	}
	ov, err := json.Marshal(t.Overrides)
	if err != nil {
		return Task{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, filename, filepath, status, stage, progress, log, created_at, finished_at, retry_count, overrides_json, upload_speed, upload_eta)
			 VALUES (?, ?, ?, ?, ?, 0, '', ?, NULL, 0, ?, 0, 0)`,
			t.ID, t.Filename, t.Filepath, t.Status, t.Stage, t.CreatedAt.Format(time.RFC3339Nano), string(ov))
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// Load fetches a task by id.
func (s *Store) Load(ctx context.Context, id int) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	return t, err
}

// ListByStatus returns every task in one of the given statuses, ordered
// by id (oldest first), for startup recovery and batch operations.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status IN (` + placeholders(len(statuses)) + `) ORDER BY id`
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAll returns every task, newest first, for CLI status listing.
func (s *Store) ListAll(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// SetStatus transitions a task's status (and stage, when non-empty),
// resetting progress to 0 whenever the stage changes (spec §3: progress
// "monotonic within a stage but reset when crossing stages").
func (s *Store) SetStatus(ctx context.Context, id int, status Status, stage Stage) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var cur Stage
		if err := tx.QueryRowContext(ctx, `SELECT stage FROM tasks WHERE id = ?`, id).Scan(&cur); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		resetProgress := stage != "" && stage != cur
		var finishedAt any
		if status.Terminal() {
			finishedAt = time.Now().UTC().Format(time.RFC3339Nano)
		}
		effectiveStage := cur
		if stage != "" {
			effectiveStage = stage
		}
		if resetProgress {
			_, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, stage=?, progress=0, finished_at=? WHERE id=?`,
				status, effectiveStage, finishedAt, id)
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, stage=?, finished_at=? WHERE id=?`,
			status, effectiveStage, finishedAt, id)
		return err
	})
}

// SetProgress updates the monotonic-within-a-stage progress counter.
func (s *Store) SetProgress(ctx context.Context, id int, progress int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET progress=? WHERE id=?`, progress, id)
	return err
}

// AppendLog appends a timestamped line to the task's log, trimming the
// oldest content once the column exceeds maxLogBytes.
func (s *Store) AppendLog(ctx context.Context, id int, line string) error {
	stamped := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var cur string
		if err := tx.QueryRowContext(ctx, `SELECT log FROM tasks WHERE id=?`, id).Scan(&cur); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		next := cur + stamped
		if len(next) > maxLogBytes {
			next = next[len(next)-maxLogBytes:]
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET log=? WHERE id=?`, next, id)
		return err
	})
}

// SetRetryCount sets the retry counter directly (manual retry resets it
// to 0; the worker increments it on re-queue).
func (s *Store) SetRetryCount(ctx context.Context, id int, n int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET retry_count=? WHERE id=?`, n, id)
	return err
}

// SetFilepath records the path a scrub stage rewrote the container to.
func (s *Store) SetFilepath(ctx context.Context, id int, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET filepath=? WHERE id=?`, path, id)
	return err
}

// SetOverrides persists the task's overrides blob (including the _passed
// checkpoint list).
func (s *Store) SetOverrides(ctx context.Context, id int, ov Overrides) error {
	b, err := json.Marshal(ov)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE tasks SET overrides_json=? WHERE id=?`, string(b), id)
	return err
}

// AddPassed checkpoints segment name as verified clean for id, so a
// subsequent retry skips it (spec §4.3 step 6d, §9).
func (s *Store) AddPassed(ctx context.Context, id int, segment string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var overridesJSON string
		if err := tx.QueryRowContext(ctx, `SELECT overrides_json FROM tasks WHERE id=?`, id).Scan(&overridesJSON); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		var ov Overrides
		if overridesJSON != "" {
			_ = json.Unmarshal([]byte(overridesJSON), &ov)
		}
		if !ov.HasPassed(segment) {
			ov.Passed = append(ov.Passed, segment)
		}
		b, err := json.Marshal(ov)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET overrides_json=? WHERE id=?`, string(b), id)
		return err
	})
}

// SetUploadStats records the last-observed upload speed/eta.
func (s *Store) SetUploadStats(ctx context.Context, id int, speed float64, etaSeconds int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET upload_speed=?, upload_eta=? WHERE id=?`, speed, etaSeconds, id)
	return err
}

// Delete removes a task row.
func (s *Store) Delete(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	return err
}

// ClearFinished deletes every task in a terminal status, per spec §4.7.
func (s *Store) ClearFinished(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status IN (?, ?, ?, ?)`,
		StatusUploaded, StatusDirty, StatusError, StatusCancelled)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ResetForRetry clears the retry checkpoint state and reschedules a task
// into the given stage/status for a manual retry (spec §4.5 "Manual
// retry").
func (s *Store) ResetForRetry(ctx context.Context, id int, status Status, stage Stage, clearPassed bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var overridesJSON string
		if err := tx.QueryRowContext(ctx, `SELECT overrides_json FROM tasks WHERE id=?`, id).Scan(&overridesJSON); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		var ov Overrides
		if overridesJSON != "" {
			_ = json.Unmarshal([]byte(overridesJSON), &ov)
		}
		if clearPassed {
			ov.Passed = nil
		}
		b, err := json.Marshal(ov)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET status=?, stage=?, retry_count=0, finished_at=NULL, progress=0, overrides_json=? WHERE id=?`,
			status, stage, string(b), id)
		return err
	})
}

// AdjustOverrides merges extra settings overrides onto the task (spec
// §4.7 adjust_and_retry).
func (s *Store) AdjustOverrides(ctx context.Context, id int, settings map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var overridesJSON string
		if err := tx.QueryRowContext(ctx, `SELECT overrides_json FROM tasks WHERE id=?`, id).Scan(&overridesJSON); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		var ov Overrides
		if overridesJSON != "" {
			_ = json.Unmarshal([]byte(overridesJSON), &ov)
		}
		if ov.Settings == nil {
			ov.Settings = map[string]string{}
		}
		for k, v := range settings {
			ov.Settings[k] = v
		}
		b, err := json.Marshal(ov)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET overrides_json=? WHERE id=?`, string(b), id)
		return err
	})
}
