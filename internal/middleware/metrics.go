package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-calendar-api/internal/service"
)

// unmatchedRoute is the path label for requests that hit no registered route.
const unmatchedRoute = "unmatched"

// Metrics records the method, route template and status of every request.
func Metrics(stats *service.MetricsService) gin.HandlerFunc {
	if stats == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		stats.ObserveHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(started))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
