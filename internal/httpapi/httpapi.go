// Package httpapi implements the HTTP ingress adapter: gin-gonic/gin for
// routing/binding, gin-contrib/cors for permissive CORS, and google/uuid to
// validate correlationId before it ever reaches the ingress bridge.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/ingress"
	"github.com/rinha-gateway/payment-router/internal/ledger"
	"github.com/rinha-gateway/payment-router/internal/model"
)

// paymentRequest mirrors POST /payments' JSON body.
type paymentRequest struct {
	CorrelationID string  `json:"correlationId" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
}

type paymentResponse struct {
	Payment paymentRequest `json:"payment"`
	Status  string         `json:"status"`
}

type processorSummary struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type summaryResponse struct {
	Default  processorSummary `json:"default"`
	Fallback processorSummary `json:"fallback"`
}

// Server wires the HTTP routes to the ingress bridge and ledger.
type Server struct {
	bridge *ingress.Bridge
	ledger *ledger.Ledger
	engine *gin.Engine
}

// New builds a Server with every route registered and permissive CORS.
func New(bridge *ingress.Bridge, led *ledger.Ledger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"*"}
	r.Use(cors.New(corsConfig))

	s := &Server{bridge: bridge, ledger: led, engine: r}

	r.POST("/payments", s.handlePayments)
	r.GET("/payments-summary", s.handlePaymentsSummary)
	r.POST("/purge-payments", s.handlePurgePayments)
	r.GET("/healthz", s.handleHealthz)

	return s
}

// Handler exposes the underlying http.Handler for ListenAndServe/graceful
// shutdown wiring in cmd/server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handlePayments(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := uuid.Parse(req.CorrelationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "correlationId must be a valid UUID"})
		return
	}

	payment := model.Payment{CorrelationID: req.CorrelationID, Amount: req.Amount}
	if err := s.bridge.Accept(payment); err != nil {
		slog.Error("ingress rejected payment", "correlation_id", req.CorrelationID, "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": apperr.ErrAcceptRejected.Error()})
		return
	}

	c.JSON(http.StatusOK, paymentResponse{Payment: req, Status: "queued"})
}

func (s *Server) handlePaymentsSummary(c *gin.Context) {
	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	def, err := s.ledger.Summarize(ctx, model.Default, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	fallback, err := s.ledger.Summarize(ctx, model.Fallback, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summaryResponse{
		Default:  processorSummary{TotalRequests: def.TotalRequests, TotalAmount: def.TotalAmount},
		Fallback: processorSummary{TotalRequests: fallback.TotalRequests, TotalAmount: fallback.TotalAmount},
	})
}

func (s *Server) handlePurgePayments(c *gin.Context) {
	if err := s.ledger.Purge(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// handleHealthz is a bare liveness probe for orchestrators and load
// balancers; it doesn't touch any component's state.
func (s *Server) handleHealthz(c *gin.Context) {
	c.Status(http.StatusOK)
}

func parseWindow(fromRaw, toRaw string) (from, to time.Time, err error) {
	from, err = time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err = time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
