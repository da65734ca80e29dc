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

// SymbolHandler serves catalog lookups from the registry
type SymbolHandler struct {
	reg    *registry.Registry
	logger *zap.Logger
}

// NewSymbolHandler creates a new symbol handler
func NewSymbolHandler(reg *registry.Registry, logger *zap.Logger) *SymbolHandler {
	return &SymbolHandler{
		reg:    reg,
		logger: logger,
	}
}

// GetAllSymbols handles GET /symbols
func (h *SymbolHandler) GetAllSymbols(c *gin.Context) {
	symbols := h.reg.GetSymbols()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(symbols),
		"symbols": symbols,
	})
}

// GetSymbol handles GET /symbols/:code
func (h *SymbolHandler) GetSymbol(c *gin.Context) {
	code := c.Param("code")
	sym, err := h.reg.GetSymbol(code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
			return
		}
		h.logger.Error("Failed to get symbol", zap.Error(err), zap.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get symbol"})
		return
	}
	c.JSON(http.StatusOK, sym)
}

// GetWeights handles GET /symbols/:code/weights
func (h *SymbolHandler) GetWeights(c *gin.Context) {
	code := c.Param("code")
	weights, err := h.reg.GetWeights(code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
			return
		}
		h.logger.Error("Failed to get weights", zap.Error(err), zap.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get weights"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    code,
		"count":   len(weights),
		"weights": weights,
	})
}

// GetMarkets handles GET /markets
func (h *SymbolHandler) GetMarkets(c *gin.Context) {
	markets := h.reg.GetMarkets()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(markets),
		"markets": markets,
	})
}

type upsertSymbolRequest struct {
	MarketID  int64  `json:"market_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
	Name      string `json:"name" binding:"required"`
	TypeID    int64  `json:"type_id" binding:"required"`
	Valid     bool   `json:"valid"`
	StartDate uint32 `json:"start_date"`
	EndDate   uint32 `json:"end_date"`
}

// UpsertSymbol handles PUT /symbols
func (h *SymbolHandler) UpsertSymbol(c *gin.Context) {
	var req upsertSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sym := model.Symbol{
		MarketID:  req.MarketID,
		Code:      req.Code,
		Name:      req.Name,
		TypeID:    req.TypeID,
		Valid:     req.Valid,
		StartDate: model.Date(req.StartDate),
		EndDate:   model.Date(req.EndDate),
	}
	if sym.EndDate == 0 {
		sym.EndDate = model.OpenEndDate
	}

	saved, err := h.reg.UpsertSymbol(c.Request.Context(), sym)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, model.ErrConstraintViolation) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to upsert symbol", zap.Error(err), zap.String("code", req.Code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upsert symbol"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DelistSymbol handles DELETE /symbols/:code
func (h *SymbolHandler) DelistSymbol(c *gin.Context) {
	code := c.Param("code")
	endDate, err := strconv.ParseUint(c.Query("end_date"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, want YYYYMMDD"})
		return
	}

	if err := h.reg.DelistSymbol(c.Request.Context(), code, model.Date(endDate)); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
			return
		}
		h.logger.Error("Failed to delist symbol", zap.Error(err), zap.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delist symbol"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "end_date": endDate})
}

type appendWeightRequest struct {
	ExDate      uint32 `json:"ex_date" binding:"required"`
	BonusShares int64  `json:"bonus_shares"`
	RightsIssue int64  `json:"rights_issue"`
	RightsPrice int64  `json:"rights_price"`
	Dividend    int64  `json:"dividend"`
}

// AppendWeight handles POST /symbols/:code/weights
func (h *SymbolHandler) AppendWeight(c *gin.Context) {
	code := c.Param("code")
	var req appendWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sym, err := h.reg.GetSymbol(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
		return
	}

	w := model.WeightAdjustment{
		SymbolID:    sym.ID,
		ExDate:      model.Date(req.ExDate),
		BonusShares: req.BonusShares,
		RightsIssue: req.RightsIssue,
		RightsPrice: model.Price(req.RightsPrice),
		Dividend:    model.Price(req.Dividend),
	}
	if err := h.reg.AppendWeightAdjustment(c.Request.Context(), w); err != nil {
		if errors.Is(err, model.ErrConstraintViolation) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to append weight adjustment", zap.Error(err), zap.String("code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append weight adjustment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code, "ex_date": req.ExDate})
}

type replaceHolidaysRequest struct {
	Dates []uint32 `json:"dates" binding:"required"`
}

// ReplaceHolidays handles PUT /holidays
func (h *SymbolHandler) ReplaceHolidays(c *gin.Context) {
	var req replaceHolidaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dates := make([]model.Date, 0, len(req.Dates))
	for _, d := range req.Dates {
		dates = append(dates, model.Date(d))
	}

	if err := h.reg.ReplaceHolidays(c.Request.Context(), dates); err != nil {
		h.logger.Error("Failed to replace holiday calendar", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replace holidays"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(dates)})
}
