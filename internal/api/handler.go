package api

import (
	"context"
	"net/http"
	"time"

	"exchange-service/config"
	"exchange-service/internal/service"
	"exchange-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	exchange *service.ExchangeService
	views    *service.ViewInvalidator
	auth     config.AuthConfig
	deps     []Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	exchange *service.ExchangeService,
	views *service.ViewInvalidator,
	authCfg config.AuthConfig,
	deps ...Pinger,
) *Handler {
	return &Handler{
		exchange: exchange,
		views:    views,
		auth:     authCfg,
		deps:     deps,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", authMiddleware(h.auth.JWTSecret))
	{
		v1.GET("/transactions", h.listTransactions)
		v1.GET("/transactions/completed", h.listCompletedTransactions)
		v1.GET("/transactions/:id", h.getTransaction)
		v1.POST("/transactions/:id/pickup", h.markPickedUp)
		v1.POST("/transactions/:id/return", h.markReturned)
		v1.POST("/transactions/:id/complete", h.markCompleted)
		v1.POST("/transactions/:id/cancel", h.cancelTransaction)

		v1.GET("/listings/:id/pending-request", h.getPendingRequest)
		v1.GET("/listings/:id/availability", h.getAvailability)
	}

	internal := router.Group("/internal", cronMiddleware(h.auth.CronSecret))
	{
		internal.POST("/cron/check-return-dates", h.checkReturnDates)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"time":   time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkReturnDates runs one return-date sweep
func (h *Handler) checkReturnDates(c *gin.Context) {
	report, err := h.exchange.CheckReturnDates(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("Return sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, &service.Result{Success: false, Error: "Failed to check return dates"})
		return
	}
	c.JSON(http.StatusOK, &service.Result{Success: true, Data: report})
}

// statusFor maps a failure kind to its HTTP status
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusForbidden
	case service.KindInvalidState:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(c *gin.Context, res *service.Result) {
	if !res.Success {
		c.JSON(statusFor(res.Kind), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, &service.Result{Success: false, Error: message})
}
