package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
)

// AbortWithError writes err as {"detail": ...} with its mapped status.
// Internal and configuration failures are logged; their text never
// reaches the caller.
func AbortWithError(c *gin.Context, log *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Error(err),
		)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": apperrors.PublicMessage(err)})
}
