// Package plans owns the subscription tier catalog.
package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/config"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

// Definitions returns the deploy-time catalog with configured limits.
func Definitions(cfg config.PlansConfig) []models.PlanDefinition {
	return []models.PlanDefinition{
		{Slug: "starter", Name: "Starter", DailyLimit: cfg.StarterDailyLimit},
		{Slug: "individual", Name: "Individual", DailyLimit: cfg.IndividualDailyLimit},
		{Slug: "team", Name: "Team", DailyLimit: cfg.TeamDailyLimit},
		{Slug: "business", Name: "Business", DailyLimit: cfg.BusinessDailyLimit},
	}
}

const planColumns = "id, slug, name, daily_limit, created_at, updated_at"

type Catalog struct {
	db  database.Queryer
	now func() time.Time
}

func NewCatalog(db database.Queryer) *Catalog {
	return &Catalog{db: db, now: time.Now}
}

// Seed reconciles defs against storage. Existing rows are updated only
// when name or limit drifted; rows absent from defs are left alone.
func (c *Catalog) Seed(ctx context.Context, defs []models.PlanDefinition) error {
	for _, def := range defs {
		if err := c.seedOne(ctx, def); err != nil {
			return fmt.Errorf("seed plan %s: %w", def.Slug, err)
		}
	}
	return nil
}

func (c *Catalog) seedOne(ctx context.Context, def models.PlanDefinition) error {
	now := c.now().UTC()

	existing, err := c.Get(ctx, def.Slug)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_, err = c.db.ExecContext(ctx,
			"INSERT INTO plans (slug, name, daily_limit, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			def.Slug, def.Name, def.DailyLimit, now, now)
		if err == nil || !database.IsDuplicateKey(err) {
			return err
		}
		// Lost a race with a concurrent seed; reconcile against its row.
		existing, err = c.Get(ctx, def.Slug)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if existing.Name == def.Name && existing.DailyLimit == def.DailyLimit {
		return nil
	}
	_, err = c.db.ExecContext(ctx,
		"UPDATE plans SET name = ?, daily_limit = ?, updated_at = ? WHERE id = ?",
		def.Name, def.DailyLimit, now, existing.ID)
	return err
}

// Get returns the plan with slug, or a NotFound error.
func (c *Catalog) Get(ctx context.Context, slug string) (*models.Plan, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE slug = ?", slug)
	return scanPlan(row, "plan "+slug)
}

func (c *Catalog) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
	return scanPlan(row, fmt.Sprintf("plan %d", id))
}

// Default returns the starter plan. A missing row is a deployment defect.
func (c *Catalog) Default(ctx context.Context) (*models.Plan, error) {
	p, err := c.Get(ctx, models.DefaultPlanSlug)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Configuration("default plan 'starter' is missing; run seed")
	}
	return p, err
}

// List returns the whole catalog ordered by name.
func (c *Catalog) List(ctx context.Context) ([]models.Plan, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT "+planColumns+" FROM plans ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.DailyLimit, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row *sql.Row, what string) (*models.Plan, error) {
	var p models.Plan
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.DailyLimit, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(what + " not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
