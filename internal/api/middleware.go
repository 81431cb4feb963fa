package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"exchange-service/internal/auth"
	"exchange-service/internal/service"
	"exchange-service/internal/util"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// authMiddleware validates the bearer session token and stores its claims
func authMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				&service.Result{Success: false, Error: "Missing or invalid authorization header"})
			return
		}

		claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, &service.Result{Success: false, Error: "Invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// cronMiddleware guards scheduler endpoints with a shared secret when one is configured
func cronMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, &service.Result{Success: false, Error: "Unauthorized"})
			return
		}
		c.Next()
	}
}

// actorFrom builds the acting user from the validated claims
func actorFrom(c *gin.Context) service.Actor {
	claims := c.MustGet(claimsKey).(*auth.Claims)
	return service.Actor{
		TenantID:   claims.TenantID,
		TenantSlug: claims.TenantSlug,
		UserID:     claims.UserID(),
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
