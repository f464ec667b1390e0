package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mileage-api/internal/middleware"
	"github.com/noah-isme/mileage-api/internal/models"
)

// caller returns the identity stored by the JWT middleware, nil when the
// route is public. Services treat a nil caller as unauthenticated.
func caller(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(middleware.ContextUserKey).(*models.JWTClaims)
	return claims
}
