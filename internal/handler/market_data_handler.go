package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/yourorg/market-data-service/internal/model"
	"github.com/yourorg/market-data-service/internal/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MarketDataHandler serves bar and tick reads from the registry
type MarketDataHandler struct {
	reg    *registry.Registry
	logger *zap.Logger
}

// NewMarketDataHandler creates a new market data handler
func NewMarketDataHandler(reg *registry.Registry, logger *zap.Logger) *MarketDataHandler {
	return &MarketDataHandler{
		reg:    reg,
		logger: logger,
	}
}

// GetBars handles GET /market-data/bars
func (h *MarketDataHandler) GetBars(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	period, err := model.ParsePeriod(c.DefaultQuery("period", string(model.PeriodDay)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDatetime(c.DefaultQuery("start", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	end, err := parseDatetime(c.DefaultQuery("end", "999912312359"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
		return
	}

	cursor, err := h.reg.GetBars(code, period, start, end)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
			return
		}
		h.logger.Error("Failed to get bars", zap.Error(err), zap.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get bars"})
		return
	}

	bars := cursor.Slice()
	c.JSON(http.StatusOK, gin.H{
		"code":   code,
		"period": period,
		"count":  len(bars),
		"bars":   bars,
	})
}

// GetTicks handles GET /market-data/ticks
func (h *MarketDataHandler) GetTicks(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	date, err := strconv.ParseUint(c.Query("date"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYYMMDD"})
		return
	}

	ticks, err := h.reg.GetTicks(code, model.Date(date))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
			return
		}
		h.logger.Error("Failed to get ticks", zap.Error(err), zap.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get ticks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":  code,
		"date":  date,
		"count": len(ticks),
		"ticks": ticks,
	})
}

func parseDatetime(s string) (model.Datetime, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	// Bare dates are accepted and expanded to midnight.
	if v > 0 && v < 1e10 {
		v *= 1e4
	}
	return model.Datetime(v), nil
}
