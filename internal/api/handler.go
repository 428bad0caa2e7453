// Package api exposes the ledger over HTTP. Callers arrive with an identity already
// resolved by the auth proxy in front of the service.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/NgigiN/fintrack/internal/budget"
	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/ledger"
	"github.com/NgigiN/fintrack/internal/logger"
	"github.com/NgigiN/fintrack/internal/recurrence"
	"github.com/NgigiN/fintrack/internal/storage"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderJobsToken = "X-Jobs-Token"

	userIDKey = "userID"
)

type Handler struct {
	db         *storage.Database
	ledger     *ledger.Service
	budgets    *budget.Service
	recurrence *recurrence.Engine
	jobsToken  string
	log        zerolog.Logger
	startTime  time.Time
}

// NewHandler builds the API. An empty jobsToken disables the /jobs routes.
func NewHandler(db *storage.Database, ledgerSvc *ledger.Service, budgets *budget.Service, engine *recurrence.Engine, jobsToken string, log zerolog.Logger) *Handler {
	return &Handler{
		db:         db,
		ledger:     ledgerSvc,
		budgets:    budgets,
		recurrence: engine,
		jobsToken:  jobsToken,
		log:        log.With().Str("component", "api").Logger(),
		startTime:  time.Now(),
	}
}

// Router registers every route on a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.RequestLogger())
	r.GET("/health", h.Health)

	protected := r.Group("/", h.Identity())
	protected.POST("/accounts", h.CreateAccount)
	protected.GET("/accounts", h.ListAccounts)
	protected.PUT("/accounts/default", h.SetDefaultAccount)

	protected.POST("/transactions", h.CreateTransaction)
	protected.GET("/transactions", h.ListTransactions)
	protected.GET("/transactions/:id", h.GetTransaction)
	protected.PUT("/transactions/:id", h.UpdateTransaction)
	protected.DELETE("/transactions", h.BulkDeleteTransactions)
	protected.POST("/transactions/:id/process", h.ProcessRecurring)

	protected.GET("/budget", h.GetBudget)
	protected.PUT("/budget", h.UpsertBudget)
	protected.GET("/reports/:month", h.GetReport)
	protected.POST("/reports/:month/send", h.SendReport)

	jobs := r.Group("/jobs", h.JobsAuth())
	jobs.POST("/recurring", h.RunRecurring)
	jobs.POST("/budget-alerts", h.RunBudgetAlerts)
	return r
}

// Identity requires the caller's user id and records the user on first sight.
func (h *Handler) Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUserID + " header"})
			return
		}
		if _, err := h.ledger.EnsureUser(c.Request.Context(), userID, c.GetHeader(HeaderUserEmail), c.GetHeader(HeaderUserName)); err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)

		log := logger.FromContext(c.Request.Context()).With().Str("user_id", userID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), log))
		c.Next()
	}
}

// JobsAuth admits operator calls carrying the configured shared secret.
func (h *Handler) JobsAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.jobsToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "jobs endpoints are disabled"})
			return
		}
		token := c.GetHeader(HeaderJobsToken)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.jobsToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid " + HeaderJobsToken + " header"})
			return
		}
		c.Next()
	}
}

// RequestLogger attaches a request-scoped logger and logs each request once it completes.
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger.WithFields(h.log, map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		})
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), log))

		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Int("status", c.Writer.Status()).Dur("took", time.Since(start)).Msg("request handled")
	}
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// respondError maps the domain error taxonomy onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrExternal):
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// bindJSON decodes the body; malformed payloads are invalid input.
func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
