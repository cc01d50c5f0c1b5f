package httpserver

import (
	"log"
	"net/http"
	"strings"

	"qkart-backend/internal/domain"

	"github.com/gin-gonic/gin"
)

const userCtxKey = "qkart.user"

// authMiddleware resolves the bearer token to a user and stores it on the gin context.
func authMiddleware(auth AuthService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeStatus(c, http.StatusUnauthorized, "Please authenticate")
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.Set(userCtxKey, user)
		c.Next()
	}
}

// currentUser returns the authenticated user. Routes behind authMiddleware always have one.
func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userCtxKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}
