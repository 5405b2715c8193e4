package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/models"
)

const currentUserKey = "current_user"

// SessionResolver is implemented by service.SessionGuard.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.User, error)
}

// Auth requires a valid access token and stores the resolved user on the context.
func Auth(guard SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := guard.Resolve(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := value.(models.User)
	return user, ok
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortWithError(c *gin.Context, err error) {
	status, body := apperr.Render(err)
	c.AbortWithStatusJSON(status, body)
}
