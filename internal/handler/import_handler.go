package handler

import (
	"errors"
	"net/http"

	"github.com/yourorg/market-data-service/internal/importer"
	"github.com/yourorg/market-data-service/internal/model"
	"github.com/yourorg/market-data-service/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ImportHandler triggers bulk imports and reports ingestion status
type ImportHandler struct {
	scheduler *importer.Scheduler
	pipe      *pipeline.Pipeline
	logger    *zap.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(scheduler *importer.Scheduler, pipe *pipeline.Pipeline, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		scheduler: scheduler,
		pipe:      pipe,
		logger:    logger,
	}
}

type importRequest struct {
	Markets   []string `json:"markets" binding:"required"`
	Periods   []string `json:"periods" binding:"required"`
	Cutoff    uint32   `json:"cutoff"`
	Confirmed bool     `json:"confirmed"`
}

// RunImport handles POST /imports
func (h *ImportHandler) RunImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	periods := make([]model.Period, 0, len(req.Periods))
	for _, s := range req.Periods {
		p, err := model.ParsePeriod(s)
		if err != nil || !p.IsBase() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "periods must be stored granularities (day, min1)"})
			return
		}
		periods = append(periods, p)
	}

	report, err := h.scheduler.Run(c.Request.Context(), importer.Request{
		Markets:   req.Markets,
		Periods:   periods,
		Cutoff:    model.Date(req.Cutoff),
		Confirmed: req.Confirmed,
	})
	if err != nil {
		if errors.Is(err, model.ErrRequiresConfirmation) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "trading session is open; supply a cutoff or set confirmed=true",
			})
			return
		}
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Import run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	failed := make([]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, f.Symbol)
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": report.Imported,
		"skipped":  report.Skipped,
		"failed":   failed,
	})
}

// IngestionStatus handles GET /ingestion/status
func (h *ImportHandler) IngestionStatus(c *gin.Context) {
	stats := h.pipe.Stats()
	c.JSON(http.StatusOK, gin.H{
		"state":         h.pipe.State().String(),
		"received":      stats.Received,
		"applied":       stats.Applied,
		"decode_errors": stats.DecodeErrors,
		"dropped":       stats.Dropped,
	})
}
