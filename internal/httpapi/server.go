// Package httpapi is riskbook's HTTP surface: a gin router over the account,
// journal, and import services, JWT-authenticated, with computed metrics
// cached per account.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/riskbook-dev/riskbook/internal/accounts"
	"github.com/riskbook-dev/riskbook/internal/cache"
	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/importer"
	"github.com/riskbook-dev/riskbook/internal/journal"
	"github.com/riskbook-dev/riskbook/internal/store"
	"github.com/riskbook-dev/riskbook/internal/stream"
)

// Server holds the router and the services the handlers call into.
type Server struct {
	R        *gin.Engine
	store    store.Store
	accounts *accounts.Service
	journal  *journal.Service
	importer *importer.Service
	cache    *cache.Cache
	hub      *stream.Hub
	logger   *zap.Logger
	auth     authConfig
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

// Deps are the wired services NewServer mounts.
type Deps struct {
	Store    store.Store
	Accounts *accounts.Service
	Journal  *journal.Service
	Importer *importer.Service
	Cache    *cache.Cache
	Hub      *stream.Hub
	Logger   *zap.Logger
}

// NewServer wires the router, middleware, and all routes.
func NewServer(cfg *config.Config, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	g := gin.New()

	g.Use(func(cn *gin.Context) {
		start := time.Now()
		cn.Next()
		logger.Info("http_request",
			zap.String("method", cn.Request.Method),
			zap.String("path", cn.Request.URL.Path),
			zap.Int("status", cn.Writer.Status()),
			zap.String("ip", cn.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	})

	g.Use(gin.Recovery())

	corsOrigin := cfg.CORSOrigin
	g.Use(func(cn *gin.Context) {
		origin := cn.GetHeader("Origin")
		cn.Writer.Header().Set("Vary", "Origin")
		cn.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		cn.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		cn.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if corsOrigin == "*" {
			cn.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && origin == corsOrigin {
			cn.Writer.Header().Set("Access-Control-Allow-Origin", corsOrigin)
		}
		if cn.Request.Method == http.MethodOptions {
			cn.AbortWithStatus(http.StatusNoContent)
			return
		}
		cn.Next()
	})

	s := &Server{
		R:        g,
		store:    d.Store,
		accounts: d.Accounts,
		journal:  d.Journal,
		importer: d.Importer,
		cache:    d.Cache,
		hub:      d.Hub,
		logger:   logger,
		auth: authConfig{
			secret:   []byte(cfg.Auth.Secret),
			tokenTTL: cfg.Auth.TokenTTL,
		},
	}

	g.GET("/health", func(cn *gin.Context) { cn.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := g.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.requireAuth)
	{
		authed.GET("/accounts", s.listAccounts)
		authed.POST("/accounts", s.createAccount)
		authed.GET("/accounts/:id", s.getAccount)
		authed.PATCH("/accounts/:id", s.updateAccount)
		authed.DELETE("/accounts/:id", s.deleteAccount)
		authed.GET("/accounts/:id/metrics", s.accountMetrics)
		authed.GET("/accounts/:id/equity", s.accountEquity)
		authed.GET("/accounts/:id/events", s.accountEvents)

		authed.GET("/prop-firm/accounts", s.listPropAccounts)
		authed.POST("/prop-firm/accounts", s.createAccount)
		authed.POST("/prop-firm/accounts/:id/reset", s.resetAccount)
		authed.POST("/prop-firm/accounts/:id/advance", s.advanceAccount)
		authed.DELETE("/prop-firm/accounts/:id", s.deleteAccount)
		authed.GET("/prop-firm/templates", s.listTemplates)

		authed.GET("/trades", s.listTrades)
		authed.POST("/trades", s.createTrade)
		authed.PATCH("/trades/:id/annotations", s.annotateTrade)

		authed.POST("/import/preview", s.previewImport)
		authed.POST("/import", s.commitImport)
		authed.GET("/import/platforms", s.listPlatforms)
	}

	if s.hub != nil {
		g.GET("/ws", s.hub.Handler)
		// Breach transitions happen inside the accounts service, whichever
		// request triggers the evaluation; route them to the hub from there.
		s.accounts.SetNotifier(s.hub)
	}

	return s
}

// respond writes the success envelope.
func (s *Server) respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// fail maps a service error to a status code and writes the error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	code := store.ErrCode(err)
	status, ok := statusFor[code]
	if !ok {
		s.logger.Error("internal_error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, envelope{
			Success: false,
			Error:   &apiError{Code: "INTERNAL_ERROR", Message: "internal server error"},
		})
		return
	}
	c.JSON(status, envelope{Success: false, Error: &apiError{Code: code, Message: errMessage(err)}})
}

var statusFor = map[string]int{
	store.CodeNotFound:        http.StatusNotFound,
	store.CodeAccountExists:   http.StatusConflict,
	store.CodeDuplicateTrades: http.StatusConflict,
	store.CodeValidation:      http.StatusBadRequest,
	store.CodeDBConnection:    http.StatusServiceUnavailable,
}

func errMessage(err error) string {
	var se *store.Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// badRequest writes a VALIDATION_ERROR envelope for malformed input.
func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, envelope{
		Success: false,
		Error:   &apiError{Code: store.CodeValidation, Message: msg},
	})
}

func (s *Server) invalidateMetrics(accountID string) {
	if s.cache != nil {
		s.cache.Del(metricsKey(accountID))
	}
}

func metricsKey(accountID string) string { return "metrics:" + accountID }
