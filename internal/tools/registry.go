// Package tools holds per-tool metering metadata.
package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

const (
	SlugMerge    = "pdf_merge"
	SlugCompress = "pdf_compress"
)

// Definitions is the seeded tool list.
func Definitions() []models.ToolDefinition {
	return []models.ToolDefinition{
		{Slug: SlugMerge, Category: "pdf", Weight: 1, IsPremium: false},
		{Slug: SlugCompress, Category: "pdf", Weight: 2, IsPremium: false},
	}
}

type Registry struct {
	db  database.Queryer
	now func() time.Time
}

func NewRegistry(db database.Queryer) *Registry {
	return &Registry{db: db, now: time.Now}
}

// Seed ensures every definition exists and matches; unknown rows stay.
func (r *Registry) Seed(ctx context.Context, defs []models.ToolDefinition) error {
	for _, def := range defs {
		if err := r.seedOne(ctx, def); err != nil {
			return fmt.Errorf("seed tool %s: %w", def.Slug, err)
		}
	}
	return nil
}

func (r *Registry) seedOne(ctx context.Context, def models.ToolDefinition) error {
	now := r.now().UTC()

	existing, err := r.Lookup(ctx, def.Slug)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO tools (slug, category, weight, is_premium, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			def.Slug, def.Category, def.Weight, def.IsPremium, now, now)
		if err == nil || !database.IsDuplicateKey(err) {
			return err
		}
		if existing, err = r.Lookup(ctx, def.Slug); err != nil || existing == nil {
			return err
		}
	}

	if existing.Category == def.Category && existing.Weight == def.Weight && existing.IsPremium == def.IsPremium {
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE tools SET category = ?, weight = ?, is_premium = ?, updated_at = ? WHERE id = ?",
		def.Category, def.Weight, def.IsPremium, now, existing.ID)
	return err
}

// Lookup returns the registered tool, or nil when slug is unknown.
func (r *Registry) Lookup(ctx context.Context, slug string) (*models.Tool, error) {
	var t models.Tool
	err := r.db.QueryRowContext(ctx,
		"SELECT id, slug, category, weight, is_premium, created_at, updated_at FROM tools WHERE slug = ?", slug,
	).Scan(&t.ID, &t.Slug, &t.Category, &t.Weight, &t.IsPremium, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Weight is the quota cost of one invocation. Unregistered tools and
// non-positive weights cost 1.
func (r *Registry) Weight(ctx context.Context, slug string) (int, error) {
	t, err := r.Lookup(ctx, slug)
	if err != nil {
		return 0, err
	}
	if t == nil || t.Weight < 1 {
		return 1, nil
	}
	return t.Weight, nil
}

// IsPremium reports the registered flag; unregistered tools are free.
func (r *Registry) IsPremium(ctx context.Context, slug string) (bool, error) {
	t, err := r.Lookup(ctx, slug)
	if err != nil || t == nil {
		return false, err
	}
	return t.IsPremium, nil
}
