package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-calendar-api/internal/policy"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
	"github.com/noah-isme/school-calendar-api/pkg/response"
)

// RequireAction rejects callers whose role may not perform action. It must run after JWT.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		if err := policy.Authorize(claims.Role, action); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
