package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/entitlement"
	"github.com/24f2002329/caniedit/internal/middleware"
	"github.com/24f2002329/caniedit/internal/models"
	"github.com/24f2002329/caniedit/internal/pdf"
	"github.com/24f2002329/caniedit/internal/storage"
	"github.com/24f2002329/caniedit/internal/users"
)

// Admitter charges the caller's quota for one tool invocation.
type Admitter interface {
	Admit(ctx context.Context, req entitlement.Request) (*models.UsageRecord, error)
}

type UserService interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, in users.ProfileUpdate) (*models.User, error)
	RequestDeletion(ctx context.Context, userID string) (*models.DeletionSchedule, error)
	CancelDeletion(ctx context.Context, userID string) (*models.User, error)
}

type SubscriptionService interface {
	Summary(ctx context.Context, userID string) (*models.SubscriptionSummary, error)
	EnsureDefaultSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

type UsageReporter interface {
	Today(ctx context.Context, userID string) ([]models.UsageSummary, error)
}

type PlanLister interface {
	List(ctx context.Context) ([]models.Plan, error)
}

type FileRecords interface {
	Insert(ctx context.Context, rec *models.FileRecord) error
	ByFilename(ctx context.Context, filename string) (*models.FileRecord, error)
	Delete(ctx context.Context, id int64) error
}

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Gate          Admitter
	Users         UserService
	Subscriptions SubscriptionService
	Usage         UsageReporter
	Plans         PlanLister
	Files         FileRecords
	Store         *storage.Store
	Processor     pdf.Processor
	Log           *zap.Logger

	// MaxFileBytes is the per-upload size limit.
	MaxFileBytes    int64
	// MaxRequestBytes caps a whole tool request body. Zero means room for
	// maxUploadFiles uploads of MaxFileBytes plus form overhead.
	MaxRequestBytes int64
}

// Health handles GET /
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "CanIEdit backend is running",
	})
}

// ListPlans handles GET /plans
func (h *Handlers) ListPlans(c *gin.Context) {
	plans, err := h.Plans.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// fail converts err into the {"detail": ...} response.
func (h *Handlers) fail(c *gin.Context, err error) {
	middleware.AbortWithError(c, h.Log, err)
}

// currentUser is only used behind RequireAuth, so a missing user is a
// routing mistake.
func (h *Handlers) currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.fail(c, apperrors.AuthenticationRequired(middleware.MsgMissingToken))
		return nil, false
	}
	return user, true
}
