package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quant-engine/internal/engine"
	"quant-engine/internal/settings"
)

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"status": "error", "message": err.Error()})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Settings().Map())
}

type configUpdate struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value"`
}

func (s *Server) updateConfig(c *gin.Context) {
	var req configUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request payload"})
		return
	}

	err := s.Engine.Settings().Set(req.Key, req.Value)
	switch {
	case errors.Is(err, settings.ErrUnknownKey):
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Config key '%s' not found.", req.Key)})
		return
	case errors.Is(err, settings.ErrReadOnlyKey):
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Config key '%s' is read-only.", req.Key)})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.Log.Info("config updated",
		zap.String("key", req.Key),
		zap.Any("value", req.Value),
		zap.String("subject", CurrentSubject(c)))
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s updated to %v", req.Key, req.Value)})
}

func (s *Server) refresh(c *gin.Context) {
	ok, err := s.Engine.RefreshMarketData(c.Request.Context())
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refresh": ok})
}

func (s *Server) runStrategy(c *gin.Context) {
	// The cycle is not bound to the request timeout.
	summary, err := s.Engine.RunStrategyCycle(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Strategy executed", "summary": summary})
}

func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.Engine.GetOpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"positions": []string{}, "status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) getOrders(c *gin.Context) {
	orders, err := s.Engine.GetOpenOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"orders": []string{}, "status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) getMarket(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Market())
}

func (s *Server) getReconciliation(c *gin.Context) {
	if s.Recon == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "reconciliation disabled"})
		return
	}
	report, err := s.Recon.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) start(c *gin.Context) {
	s.Engine.Start()
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (s *Server) stop(c *gin.Context) {
	if !s.Engine.Stop() {
		c.JSON(http.StatusOK, gin.H{"message": "Bot is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bot stopped"})
}

func statusFor(err error) int {
	if errors.Is(err, engine.ErrCycleInProgress) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
