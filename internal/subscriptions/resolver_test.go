package subscriptions

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/models"
)

var (
	fixedNow    = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	activeQuery = regexp.QuoteMeta("SELECT p.id, p.slug, p.name, p.daily_limit, p.created_at, p.updated_at FROM subscriptions s JOIN plans p ON p.id = s.plan_id WHERE s.user_id = ? AND s.status = ? ORDER BY (s.current_period_end IS NULL) DESC")
	planBySlug  = regexp.QuoteMeta("FROM plans WHERE slug = ?")
	lockQuery   = regexp.QuoteMeta("SELECT id FROM users WHERE id = ? FOR UPDATE")
	latestQuery = regexp.QuoteMeta("FROM subscriptions s WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id DESC LIMIT 1")
	planCols    = []string{"id", "slug", "name", "daily_limit", "created_at", "updated_at"}
	subCols     = []string{"id", "user_id", "plan_id", "status", "current_period_start", "current_period_end", "created_at", "updated_at"}
)

func newResolver(t *testing.T, withCache bool) (*Resolver, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	var (
		cache *PlanCache
		mr    *miniredis.Miniredis
	)
	if withCache {
		mr = miniredis.RunT(t)
		cache = NewPlanCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	}

	r := NewResolver(database.New(sqlDB, database.DriverMySQL), cache, zaptest.NewLogger(t))
	r.now = func() time.Time { return fixedNow }
	return r, mock, mr
}

func TestActivePlanUsesActiveSubscription(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectQuery(activeQuery).WithArgs("u-1", "active").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(2, "individual", "Individual", 100, fixedNow, fixedNow))

	plan, err := r.ActivePlan(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "individual", plan.Slug)
	assert.Equal(t, 100, plan.DailyLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePlanFallsBackToStarter(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectQuery(activeQuery).WillReturnRows(sqlmock.NewRows(planCols))
	mock.ExpectQuery(planBySlug).WithArgs("starter").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(1, "starter", "Starter", 20, fixedNow, fixedNow))

	plan, err := r.ActivePlan(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, plan.IsDefault())
	assert.Equal(t, 20, plan.DailyLimit)
}

func TestActivePlanMissingStarterIsConfigurationError(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectQuery(activeQuery).WillReturnRows(sqlmock.NewRows(planCols))
	mock.ExpectQuery(planBySlug).WillReturnRows(sqlmock.NewRows(planCols))

	_, err := r.ActivePlan(context.Background(), "u-1")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
}

func TestActivePlanIsCached(t *testing.T) {
	r, mock, mr := newResolver(t, true)

	mock.ExpectQuery(activeQuery).WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(3, "team", "Team", 200, fixedNow, fixedNow))

	first, err := r.ActivePlan(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("sub:plan:u-1:0"))

	// Served from Redis; no further SQL is expected.
	second, err := r.ActivePlan(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, first.Slug, second.Slug)
	assert.Equal(t, first.DailyLimit, second.DailyLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivePlanSurvivesRedisOutage(t *testing.T) {
	r, mock, mr := newResolver(t, true)
	mr.Close()

	mock.ExpectQuery(activeQuery).WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(3, "team", "Team", 200, fixedNow, fixedNow))

	plan, err := r.ActivePlan(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "team", plan.Slug)
}

func TestEnsureDefaultSubscriptionKeepsExisting(t *testing.T) {
	r, mock, _ := newResolver(t, false)
	end := fixedNow.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("u-1").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery(latestQuery).WithArgs("u-1").WillReturnRows(
		sqlmock.NewRows(subCols).AddRow(5, "u-1", 2, "canceled", fixedNow, end, fixedNow, fixedNow))
	mock.ExpectCommit()

	sub, err := r.EnsureDefaultSubscription(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), sub.ID)
	assert.Equal(t, "canceled", sub.Status, "a lapsed subscription is not reactivated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultSubscriptionCreatesStarter(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery(latestQuery).WillReturnRows(sqlmock.NewRows(subCols))
	mock.ExpectQuery(planBySlug).WithArgs("starter").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(1, "starter", "Starter", 20, fixedNow, fixedNow))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("u-1", int64(1), "active", fixedNow, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(latestQuery).WillReturnRows(
		sqlmock.NewRows(subCols).AddRow(9, "u-1", 1, "active", fixedNow, nil, fixedNow, fixedNow))
	mock.ExpectCommit()

	sub, err := r.EnsureDefaultSubscription(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.CurrentPeriodEnd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultSubscriptionUnknownUser(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := r.EnsureDefaultSubscription(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantReplacesActiveAndInvalidatesCache(t *testing.T) {
	r, mock, mr := newResolver(t, true)
	require.NoError(t, mr.Set("sub:plan:u-1:0", `{"id":1,"slug":"starter","name":"Starter","daily_limit":20}`))

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery(planBySlug).WithArgs("individual").WillReturnRows(
		sqlmock.NewRows(planCols).AddRow(2, "individual", "Individual", 100, fixedNow, fixedNow))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status = ?, updated_at = ? WHERE user_id = ? AND status = ?")).
		WithArgs("replaced", fixedNow, "u-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("u-1", int64(2), "active", fixedNow, nil, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery(latestQuery).WillReturnRows(
		sqlmock.NewRows(subCols).AddRow(10, "u-1", 2, "active", fixedNow, nil, fixedNow, fixedNow))
	mock.ExpectCommit()

	sub, err := r.Grant(context.Background(), "u-1", "individual", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.PlanID)
	require.NotNil(t, sub.Plan)
	assert.Equal(t, "individual", sub.Plan.Slug)
	gen, err := mr.Get("sub:plangen:u-1")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	_, _, ok, err := r.cache.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.False(t, ok, "the starter entry belongs to the old generation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanCacheIgnoresWritesFromBeforeInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewPlanCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()

	// A resolver misses and reads the old plan from SQL...
	_, gen, ok, err := cache.Get(ctx, "u-1")
	require.NoError(t, err)
	require.False(t, ok)

	// ...a grant commits and invalidates...
	require.NoError(t, cache.Invalidate(ctx, "u-1"))

	// ...and only then does the slow reader fill the cache.
	starter := &models.Plan{ID: 1, Slug: "starter", Name: "Starter", DailyLimit: 20}
	require.NoError(t, cache.Set(ctx, "u-1", gen, starter))

	_, _, ok, err = cache.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, ok)

	individual := &models.Plan{ID: 2, Slug: "individual", Name: "Individual", DailyLimit: 100}
	_, gen, _, err = cache.Get(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "u-1", gen, individual))

	got, _, ok, err := cache.Get(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "individual", got.Slug)
}

func TestGrantUnknownPlan(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery(planBySlug).WithArgs("platinum").WillReturnRows(sqlmock.NewRows(planCols))
	mock.ExpectRollback()

	_, err := r.Grant(context.Background(), "u-1", "platinum", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummary(t *testing.T) {
	r, mock, _ := newResolver(t, false)
	end := fixedNow.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("p.id, p.slug, p.name, p.daily_limit FROM subscriptions s JOIN plans p")).
		WithArgs("u-1", "active").
		WillReturnRows(sqlmock.NewRows(append(subCols, "pid", "slug", "name", "daily_limit")).
			AddRow(10, "u-1", 2, "active", fixedNow, end, fixedNow, fixedNow, 2, "individual", "Individual", 100))
	mock.ExpectQuery(regexp.QuoteMeta("FROM plans ORDER BY name")).WillReturnRows(
		sqlmock.NewRows(planCols).
			AddRow(4, "business", "Business", 9999, fixedNow, fixedNow).
			AddRow(2, "individual", "Individual", 100, fixedNow, fixedNow).
			AddRow(1, "starter", "Starter", 20, fixedNow, fixedNow).
			AddRow(3, "team", "Team", 200, fixedNow, fixedNow))

	summary, err := r.Summary(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, summary.Active)
	assert.Equal(t, "individual", summary.Active.Plan.Slug)
	require.NotNil(t, summary.Active.CurrentPeriodEnd)
	assert.Equal(t, end, *summary.Active.CurrentPeriodEnd)
	assert.Len(t, summary.Plans, 4)
}

func TestSummaryWithoutSubscription(t *testing.T) {
	r, mock, _ := newResolver(t, false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions s JOIN plans p")).WillReturnRows(
		sqlmock.NewRows(append(subCols, "pid", "slug", "name", "daily_limit")))
	mock.ExpectQuery(regexp.QuoteMeta("FROM plans ORDER BY name")).WillReturnRows(sqlmock.NewRows(planCols))

	summary, err := r.Summary(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Nil(t, summary.Active)
	assert.NotNil(t, summary.Plans)
}
