package tools

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

var (
	fixedNow   = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	selectTool = regexp.QuoteMeta("SELECT id, slug, category, weight, is_premium, created_at, updated_at FROM tools WHERE slug = ?")
	toolCols   = []string{"id", "slug", "category", "weight", "is_premium", "created_at", "updated_at"}
)

func newRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	r := NewRegistry(database.New(sqlDB, database.DriverMySQL))
	r.now = func() time.Time { return fixedNow }
	return r, mock
}

func TestWeight(t *testing.T) {
	tests := []struct {
		name   string
		rows   *sqlmock.Rows
		weight int
	}{
		{"registered", sqlmock.NewRows(toolCols).AddRow(2, "pdf_compress", "pdf", 2, false, fixedNow, fixedNow), 2},
		{"unregistered", sqlmock.NewRows(toolCols), 1},
		{"non-positive", sqlmock.NewRows(toolCols).AddRow(9, "legacy", "pdf", 0, false, fixedNow, fixedNow), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newRegistry(t)
			mock.ExpectQuery(selectTool).WillReturnRows(tt.rows)

			w, err := r.Weight(context.Background(), "x")
			require.NoError(t, err)
			assert.Equal(t, tt.weight, w)
		})
	}
}

func TestIsPremium(t *testing.T) {
	r, mock := newRegistry(t)
	mock.ExpectQuery(selectTool).WithArgs("pdf_ocr").WillReturnRows(
		sqlmock.NewRows(toolCols).AddRow(5, "pdf_ocr", "pdf", 3, true, fixedNow, fixedNow))
	mock.ExpectQuery(selectTool).WithArgs("unknown").WillReturnRows(sqlmock.NewRows(toolCols))

	premium, err := r.IsPremium(context.Background(), "pdf_ocr")
	require.NoError(t, err)
	assert.True(t, premium)

	premium, err = r.IsPremium(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, premium)
}

func TestIsPremiumPropagatesStorageErrors(t *testing.T) {
	r, mock := newRegistry(t)
	mock.ExpectQuery(selectTool).WillReturnError(errors.New("connection reset"))

	_, err := r.IsPremium(context.Background(), "pdf_merge")
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	r, mock := newRegistry(t)
	defs := Definitions()

	for _, def := range defs {
		mock.ExpectQuery(selectTool).WithArgs(def.Slug).WillReturnRows(sqlmock.NewRows(toolCols))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tools")).
			WithArgs(def.Slug, def.Category, def.Weight, def.IsPremium, fixedNow, fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	for i, def := range defs {
		mock.ExpectQuery(selectTool).WithArgs(def.Slug).WillReturnRows(
			sqlmock.NewRows(toolCols).AddRow(i+1, def.Slug, def.Category, def.Weight, def.IsPremium, fixedNow, fixedNow))
	}

	require.NoError(t, r.Seed(context.Background(), defs))
	require.NoError(t, r.Seed(context.Background(), defs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedUpdatesWeightDrift(t *testing.T) {
	r, mock := newRegistry(t)
	def := models.ToolDefinition{Slug: SlugCompress, Category: "pdf", Weight: 2}

	mock.ExpectQuery(selectTool).WillReturnRows(
		sqlmock.NewRows(toolCols).AddRow(2, SlugCompress, "pdf", 1, false, fixedNow, fixedNow))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tools SET category = ?, weight = ?, is_premium = ?, updated_at = ? WHERE id = ?")).
		WithArgs("pdf", 2, false, fixedNow, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Seed(context.Background(), []models.ToolDefinition{def}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
