package plans

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/config"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

var (
	fixedNow     = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	selectBySlug = regexp.QuoteMeta("SELECT id, slug, name, daily_limit, created_at, updated_at FROM plans WHERE slug = ?")
	planCols     = []string{"id", "slug", "name", "daily_limit", "created_at", "updated_at"}
)

func newCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	c := NewCatalog(database.New(sqlDB, database.DriverMySQL))
	c.now = func() time.Time { return fixedNow }
	return c, mock
}

func TestDefinitionsUseConfiguredLimits(t *testing.T) {
	defs := Definitions(config.PlansConfig{
		StarterDailyLimit:    20,
		IndividualDailyLimit: 100,
		TeamDailyLimit:       200,
		BusinessDailyLimit:   9999,
	})

	require.Len(t, defs, 4)
	assert.Equal(t, models.PlanDefinition{Slug: "starter", Name: "Starter", DailyLimit: 20}, defs[0])
	assert.Equal(t, "business", defs[3].Slug)
	assert.Equal(t, 9999, defs[3].DailyLimit)
}

func TestSeedIsIdempotent(t *testing.T) {
	c, mock := newCatalog(t)
	defs := []models.PlanDefinition{{Slug: "starter", Name: "Starter", DailyLimit: 20}}

	// First seed creates the row.
	mock.ExpectQuery(selectBySlug).WithArgs("starter").WillReturnRows(sqlmock.NewRows(planCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plans")).
		WithArgs("starter", "Starter", 20, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Second seed finds it unchanged and writes nothing.
	mock.ExpectQuery(selectBySlug).WithArgs("starter").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(1, "starter", "Starter", 20, fixedNow, fixedNow))

	require.NoError(t, c.Seed(context.Background(), defs))
	require.NoError(t, c.Seed(context.Background(), defs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedUpdatesDriftInPlace(t *testing.T) {
	c, mock := newCatalog(t)
	created := fixedNow.Add(-48 * time.Hour)

	mock.ExpectQuery(selectBySlug).WithArgs("team").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(3, "team", "Teams", 150, created, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plans SET name = ?, daily_limit = ?, updated_at = ? WHERE id = ?")).
		WithArgs("Team", 200, fixedNow, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.Seed(context.Background(), []models.PlanDefinition{{Slug: "team", Name: "Team", DailyLimit: 200}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRecoversFromConcurrentInsert(t *testing.T) {
	c, mock := newCatalog(t)

	mock.ExpectQuery(selectBySlug).WithArgs("individual").WillReturnRows(sqlmock.NewRows(planCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plans")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery(selectBySlug).WithArgs("individual").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(2, "individual", "Individual", 100, fixedNow, fixedNow))

	err := c.Seed(context.Background(), []models.PlanDefinition{{Slug: "individual", Name: "Individual", DailyLimit: 100}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultMissingIsConfigurationError(t *testing.T) {
	c, mock := newCatalog(t)
	mock.ExpectQuery(selectBySlug).WithArgs("starter").WillReturnRows(sqlmock.NewRows(planCols))

	_, err := c.Default(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestListOrdersByName(t *testing.T) {
	c, mock := newCatalog(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM plans ORDER BY name")).WillReturnRows(
		sqlmock.NewRows(planCols).
			AddRow(4, "business", "Business", 9999, fixedNow, fixedNow).
			AddRow(2, "individual", "Individual", 100, fixedNow, fixedNow))

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Business", list[0].Name)
}
