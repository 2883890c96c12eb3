package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/models"
	"github.com/24f2002329/caniedit/internal/users"
)

// UpdateProfileInput is the body of PATCH /users/me. Omitted fields are
// left unchanged.
type UpdateProfileInput struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

// GetMe handles GET /users/me
func (h *Handlers) GetMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe handles PATCH /users/me
func (h *Handlers) UpdateMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, apperrors.Validation("Invalid request body"))
		return
	}

	updated, err := h.Users.UpdateProfile(c.Request.Context(), user.ID, users.ProfileUpdate{
		FullName: input.FullName,
		Email:    input.Email,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetMyUsage handles GET /users/me/usage
func (h *Handlers) GetMyUsage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	usage, err := h.Usage.Today(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if usage == nil {
		usage = []models.UsageSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// GetMySubscription handles GET /users/me/subscription
func (h *Handlers) GetMySubscription(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	summary, err := h.Subscriptions.Summary(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeleteMe handles POST /users/me/delete
func (h *Handlers) DeleteMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	schedule, err := h.Users.RequestDeletion(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"delete_requested_at": schedule.RequestedAt,
		"delete_at":           schedule.DeleteAt,
	})
}

// CancelDeleteMe handles POST /users/me/delete/cancel
func (h *Handlers) CancelDeleteMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	updated, err := h.Users.CancelDeletion(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": updated})
}

// CreateStarterSubscription handles POST /subscriptions/starter
func (h *Handlers) CreateStarterSubscription(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	sub, err := h.Subscriptions.EnsureDefaultSubscription(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"subscription": gin.H{
			"id":      sub.ID,
			"status":  sub.Status,
			"plan_id": sub.PlanID,
		},
	})
}
