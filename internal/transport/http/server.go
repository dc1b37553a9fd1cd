// Package http exposes the local admin surface: live trade state, manual
// update commands, confirmation approval and the equity report.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"traderelay/internal/dispatch"
	"traderelay/internal/journal"
	"traderelay/internal/logger"
	"traderelay/internal/registry"
	"traderelay/internal/types"
)

// Approver resolves a parked confirmation token.
type Approver interface {
	Approve(ctx context.Context, id string) error
}

// Server is the admin HTTP server.
type Server struct {
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	approver   Approver
	journal    *journal.Store
	srv        *http.Server
}

// New builds the server on addr.
func New(addr string, reg *registry.Registry, d *dispatch.Dispatcher, a Approver, j *journal.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{reg: reg, dispatcher: d, approver: a, journal: j}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.health)
	router.GET("/trades", s.trades)
	router.POST("/updates", s.update)
	router.POST("/confirmations/:id/approve", s.approve)
	router.GET("/report/equity", s.equityReport)

	s.srv = &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) trades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.reg.Summaries()})
}

func (s *Server) update(c *gin.Context) {
	var req types.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.dispatcher.Dispatch(c.Request.Context(), req); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, dispatch.ErrNoTarget), errors.Is(err, registry.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, dispatch.ErrCommandDisabled):
			status = http.StatusForbidden
		case errors.Is(err, registry.ErrStaleTarget):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

func (s *Server) approve(c *gin.Context) {
	id := c.Param("id")
	if err := s.approver.Approve(c.Request.Context(), id); err != nil {
		logger.Warnf("approve %s: %v", id, err)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, registry.ErrConfirmationNotFound):
			status = http.StatusNotFound
		case errors.Is(err, registry.ErrConfirmationExpired):
			status = http.StatusGone
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "executed"})
}
