package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Freeeeeet/marketplace/internal/gateway"
	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler is the part of the payment engine exposed over HTTP.
type PaymentHandler interface {
	HandleGatewayNotification(ctx context.Context, n gateway.Notification) error
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
}

// NotificationParser превращает форму IPN в уведомление шлюза
type NotificationParser interface {
	ParseNotification(form url.Values) gateway.Notification
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	payments    PaymentHandler
	parser      NotificationParser
	db          Pinger
	frontendURL string
	router      *gin.Engine
	logger      *zap.Logger
}

func NewServer(
	payments PaymentHandler,
	parser NotificationParser,
	db Pinger,
	frontendURL string,
	logger *zap.Logger,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		payments:    payments,
		parser:      parser,
		db:          db,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		router:      router,
		logger:      logger,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api/v1/payments")
	{
		api.POST("/ipn", s.handleIPN)
		for _, outcome := range []string{"success", "fail", "cancel"} {
			api.GET("/"+outcome+"/:tranId", s.handleRedirect(outcome))
			api.POST("/"+outcome+"/:tranId", s.handleRedirect(outcome))
		}
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger пишет каждый запрос в zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
