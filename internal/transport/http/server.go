// Package apihttp exposes the bot's operational HTTP surface: health,
// status, settings management, manual signal injection and metrics.
package apihttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/ingest"
	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/settings"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
	"github.com/iMOD07/AlpacaTradingBot/internal/store"
	"github.com/iMOD07/AlpacaTradingBot/internal/watch"
)

// Server serves the JSON API.
type Server struct {
	addr      string
	router    *gin.Engine
	startedAt time.Time
}

// ServerConfig describes the server dependencies.
type ServerConfig struct {
	Addr     string
	Settings *settings.Service
	Ingest   *ingest.Handler
	Store    *store.Store
	Watcher  *watch.Watcher
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Settings == nil || cfg.Ingest == nil || cfg.Store == nil || cfg.Watcher == nil {
		return nil, errors.New("api server requires settings, ingest, store and watcher")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, router: router, startedAt: time.Now()}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/status", s.handleStatus(cfg))
	api.GET("/settings", s.handleGetSettings(cfg.Settings))
	api.PUT("/settings", s.handlePutSettings(cfg.Settings))
	api.POST("/signal", s.handleSignal(cfg.Ingest))
	api.GET("/events", s.handleEvents(cfg.Store))
	api.GET("/records", s.handleRecords(cfg.Store))

	return s, nil
}

func (s *Server) Addr() string { return s.addr }

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("api server listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(cfg ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		open, err := cfg.Store.CountOpenRecords(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
			"armed_watches":  cfg.Watcher.ActiveCount(),
			"open_records":   open,
		})
	}
}

func (s *Server) handleGetSettings(svc *settings.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cur, err := svc.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settingsToJSON(cur))
	}
}

type settingsPayload struct {
	FixedBudgetUSD    string `json:"fixedBudgetUsd" binding:"required"`
	TakeProfitPercent string `json:"takeProfitPercent" binding:"required"`
	RegexEnabled      bool   `json:"regexEnabled"`
	AIEnabled         bool   `json:"aiEnabled"`
	ExtendedHours     bool   `json:"extendedHours"`
	MaxSpreadBps      int    `json:"maxSpreadBps"`
}

func (s *Server) handlePutSettings(svc *settings.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload settingsPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		next, err := payload.toSettings()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Update(c.Request.Context(), next); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		cur, err := svc.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settingsToJSON(cur))
	}
}

func (p settingsPayload) toSettings() (settings.Settings, error) {
	budget, err := decimal.NewFromString(p.FixedBudgetUSD)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("fixedBudgetUsd: %w", err)
	}
	tp, err := decimal.NewFromString(p.TakeProfitPercent)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("takeProfitPercent: %w", err)
	}
	return settings.Settings{
		FixedBudgetUSD:    budget,
		TakeProfitPercent: tp,
		RegexEnabled:      p.RegexEnabled,
		AIEnabled:         p.AIEnabled,
		ExtendedHours:     p.ExtendedHours,
		MaxSpreadBps:      p.MaxSpreadBps,
	}, nil
}

type signalPayload struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleSignal(h *ingest.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload signalPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		handle, err := h.OnText(c.Request.Context(), payload.Text)
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, gin.H{
				"watchId": handle.ID(),
				"key":     handle.Key(),
			})
		case errors.Is(err, signal.ErrNoSignal):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no trade signal in text"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

func (s *Server) handleEvents(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 100)
		events, err := st.ListTradeEvents(c.Request.Context(), c.Query("symbol"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(events))
		for _, e := range events {
			out = append(out, gin.H{
				"symbol":    e.Symbol,
				"eventType": e.EventType,
				"message":   e.Message,
				"orderId":   e.OrderID,
				"createdAt": e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		c.JSON(http.StatusOK, gin.H{"events": out})
	}
}

func (s *Server) handleRecords(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 100)
		records, err := st.ListTradeRecords(c.Request.Context(), c.Query("symbol"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(records))
		for _, r := range records {
			row := gin.H{
				"symbol":       r.Symbol,
				"status":       r.Status,
				"triggerPrice": r.TriggerPrice,
				"stopPrice":    r.StopPrice,
				"entryPrice":   r.EntryPrice,
				"exitPrice":    r.ExitPrice,
				"exitReason":   r.ExitReason,
				"quantity":     r.Quantity,
				"buyOrderId":   r.BuyOrderID,
				"createdAt":    r.CreatedAt.UTC().Format(time.RFC3339),
			}
			if r.ClosedAt != nil {
				row["closedAt"] = r.ClosedAt.UTC().Format(time.RFC3339)
			}
			out = append(out, row)
		}
		c.JSON(http.StatusOK, gin.H{"records": out})
	}
}

func settingsToJSON(cur settings.Settings) gin.H {
	return gin.H{
		"fixedBudgetUsd":    cur.FixedBudgetUSD.String(),
		"takeProfitPercent": cur.TakeProfitPercent.String(),
		"regexEnabled":      cur.RegexEnabled,
		"aiEnabled":         cur.AIEnabled,
		"extendedHours":     cur.ExtendedHours,
		"maxSpreadBps":      cur.MaxSpreadBps,
		"updatedAt":         cur.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d dur=%s", method, path, c.Writer.Status(), time.Since(start))
	}
}
