package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-calendar-api/internal/middleware"
	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

func identityFromContext(c *gin.Context) (models.Identity, bool) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		return models.Identity{}, false
	}
	return claims.Identity(), true
}

func eventIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Validation("id", "event id must be a positive integer")
	}
	return id, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Validation(name, name+" must be a number")
	}
	return value, nil
}
