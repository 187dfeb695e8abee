// Package httpapi exposes the replicator over HTTP: trigger endpoints for
// poll/replicate/exit/modify, query endpoints over the ledger, and a live
// SSE stream of ingested trades.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/notify"
	"github.com/quantumalpha/replicator/poller"
	"github.com/quantumalpha/replicator/replicate"
	"github.com/quantumalpha/replicator/trade"
)

type Server struct {
	R        *gin.Engine
	Engine   *replicate.Engine
	Poller   *poller.Poller
	Ledger   *ledger.Store
	Notifier *notify.Notifier
	Logger   *zap.Logger
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer wires the router, engine, ledger, and middleware.
func NewServer(engine *replicate.Engine, p *poller.Poller, store *ledger.Store, notifier *notify.Notifier, logger *zap.Logger) *Server {
	g := gin.New()

	// Request logging
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

	s := &Server{
		R:        g,
		Engine:   engine,
		Poller:   p,
		Ledger:   store,
		Notifier: notifier,
		Logger:   logger,
	}

	g.GET("/health", func(cn *gin.Context) { cn.JSON(http.StatusOK, gin.H{"ok": true}) })

	g.POST("/api/poll", s.postPoll)
	g.POST("/api/replicate", s.postReplicate)
	g.POST("/api/exit", s.postExit)
	g.POST("/api/modify", s.postModify)

	g.GET("/api/trades", s.getTrades)
	g.DELETE("/api/trades", s.deleteTrades)
	g.GET("/api/mappings", s.getMappings)
	g.GET("/api/events", s.getEvents)
	g.GET("/api/stream", s.getStream)

	return s
}

// --- Helpers ---

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, apiError{Code: "bad_request", Message: msg})
}

func (s *Server) internalError(c *gin.Context, where string, err error) {
	s.Logger.Error("internal_error", zap.String("where", where), zap.Error(err))
	c.JSON(http.StatusInternalServerError, apiError{Code: "internal_server_error", Message: "internal server error"})
}

func parseLimit(v string, def, min, max int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

func parseOffset(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// --- Trigger handlers ---

func (s *Server) postPoll(c *gin.Context) {
	res, err := s.Poller.Poll(c.Request.Context())
	if err != nil {
		s.internalError(c, "Poll", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type replicateRequest struct {
	Trade       map[string]any `json:"trade"`
	FollowerIDs []string       `json:"follower_ids,omitempty"`
}

func (s *Server) postReplicate(c *gin.Context) {
	var req replicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}
	if len(req.Trade) == 0 {
		s.badRequest(c, "trade payload is required")
		return
	}

	t, err := trade.Normalize(req.Trade, "")
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}

	results, err := s.Engine.Replicate(c.Request.Context(), t, req.FollowerIDs)
	if err != nil {
		s.internalError(c, "Replicate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"master_order_id": t.WithID().ID,
		"summary":         replicate.Summarize(results),
		"results":         results,
	})
}

type exitRequest struct {
	MasterOrderID string `json:"master_order_id"`
}

func (s *Server) postExit(c *gin.Context) {
	var req exitRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MasterOrderID) == "" {
		s.badRequest(c, "master_order_id is required")
		return
	}

	results, err := s.Engine.Exit(c.Request.Context(), req.MasterOrderID)
	if err != nil {
		s.internalError(c, "Exit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"master_order_id": req.MasterOrderID,
		"summary":         replicate.Summarize(results),
		"results":         results,
	})
}

type modifyRequest struct {
	MasterOrderID string  `json:"master_order_id"`
	Quantity      int64   `json:"quantity,omitempty"`
	Price         float64 `json:"price,omitempty"`
}

func (s *Server) postModify(c *gin.Context) {
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MasterOrderID) == "" {
		s.badRequest(c, "master_order_id is required")
		return
	}

	results, err := s.Engine.ModifySync(c.Request.Context(), req.MasterOrderID, req.Quantity, req.Price)
	if err != nil {
		s.internalError(c, "ModifySync", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"master_order_id": req.MasterOrderID,
		"summary":         replicate.Summarize(results),
		"results":         results,
	})
}

// --- Query handlers ---

func (s *Server) getTrades(c *gin.Context) {
	filter := ledger.TradeFilter{
		Account: strings.TrimSpace(c.Query("account")),
		Limit:   parseLimit(c.Query("limit"), 100, 1, 1000),
		Offset:  parseOffset(c.Query("offset")),
	}

	trades, total, err := s.Ledger.ListTrades(c.Request.Context(), filter)
	if err != nil {
		s.internalError(c, "ListTrades", err)
		return
	}
	if trades == nil {
		trades = []trade.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "total": total})
}

func (s *Server) deleteTrades(c *gin.Context) {
	account := strings.TrimSpace(c.Query("account"))
	deleted, err := s.Ledger.ClearTrades(c.Request.Context(), account)
	if err != nil {
		s.internalError(c, "ClearTrades", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) getMappings(c *gin.Context) {
	status := ledger.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	switch status {
	case "", ledger.StatusPending, ledger.StatusActive, ledger.StatusFailed, ledger.StatusCancelled:
	default:
		s.badRequest(c, "invalid status (use PENDING, ACTIVE, FAILED or CANCELLED)")
		return
	}

	filter := ledger.MappingFilter{
		MasterOrderID: strings.TrimSpace(c.Query("master_order_id")),
		FollowerID:    strings.TrimSpace(c.Query("follower_id")),
		Status:        status,
		Limit:         parseLimit(c.Query("limit"), 100, 1, 1000),
		Offset:        parseOffset(c.Query("offset")),
	}

	mappings, total, err := s.Ledger.ListMappings(c.Request.Context(), filter)
	if err != nil {
		s.internalError(c, "ListMappings", err)
		return
	}
	if mappings == nil {
		mappings = []ledger.OrderMapping{}
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "total": total})
}

func (s *Server) getEvents(c *gin.Context) {
	et := ledger.EventType(strings.ToUpper(strings.TrimSpace(c.Query("type"))))
	switch et {
	case "", ledger.EventPlace, ledger.EventModify, ledger.EventExit, ledger.EventCancel:
	default:
		s.badRequest(c, "invalid type (use PLACE, MODIFY, EXIT or CANCEL)")
		return
	}

	filter := ledger.EventFilter{
		MasterOrderID: strings.TrimSpace(c.Query("master_order_id")),
		EventType:     et,
		Limit:         parseLimit(c.Query("limit"), 100, 1, 1000),
		Offset:        parseOffset(c.Query("offset")),
	}

	events, total, err := s.Ledger.ListEvents(c.Request.Context(), filter)
	if err != nil {
		s.internalError(c, "ListEvents", err)
		return
	}
	if events == nil {
		events = []ledger.TradeEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": total})
}
