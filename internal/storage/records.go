package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

// Records persists artifact ownership in file_records.
type Records struct {
	db  database.Queryer
	now func() time.Time
}

func NewRecords(db database.Queryer) *Records {
	return &Records{db: db, now: time.Now}
}

func (r *Records) Insert(ctx context.Context, rec *models.FileRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO file_records (user_id, tool, filename, storage_path, created_at) VALUES (?, ?, ?, ?, ?)",
		rec.UserID, rec.Tool, rec.Filename, rec.StoragePath, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// ByFilename returns ErrNotFound when no owner was recorded.
func (r *Records) ByFilename(ctx context.Context, filename string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, tool, filename, storage_path, created_at FROM file_records WHERE filename = ?",
		filename).Scan(&rec.ID, &rec.UserID, &rec.Tool, &rec.Filename, &rec.StoragePath, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	return &rec, nil
}

func (r *Records) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM file_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// SweepOlderThan drops records whose artifact has aged out of the store.
func (r *Records) SweepOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM file_records WHERE created_at < ?", r.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("sweep file records: %w", err)
	}
	return res.RowsAffected()
}

// Janitor expires artifacts and their ownership rows together.
type Janitor struct {
	store   *Store
	records *Records
}

func NewJanitor(store *Store, records *Records) *Janitor {
	return &Janitor{store: store, records: records}
}

func (j *Janitor) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	files, err := j.store.Sweep(ctx, maxAge)
	if err != nil {
		return files, err
	}
	rows, err := j.records.SweepOlderThan(ctx, maxAge)
	return files + rows, err
}
