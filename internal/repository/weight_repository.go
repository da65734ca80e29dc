package repository

import (
	"context"

	"github.com/yourorg/market-data-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// WeightRepository handles database operations for corporate-action
// weight adjustments. Records are append-only, ordered by ex-date.
type WeightRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewWeightRepository creates a new weight repository
func NewWeightRepository(db *sqlx.DB, logger *zap.Logger) *WeightRepository {
	return &WeightRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll retrieves every weight adjustment, ordered per symbol by ex-date
func (r *WeightRepository) GetAll(ctx context.Context) ([]model.WeightAdjustment, error) {
	query := `
		SELECT id, symbol_id, ex_date, bonus_shares, rights_issue, rights_price, dividend
		FROM weight_adjustments
		ORDER BY symbol_id, ex_date
	`

	var weights []model.WeightAdjustment
	err := r.db.SelectContext(ctx, &weights, query)
	if err != nil {
		r.logger.Error("Failed to get weight adjustments", zap.Error(err))
		return nil, err
	}

	return weights, nil
}

// GetBySymbol retrieves one symbol's adjustments ordered by ex-date
func (r *WeightRepository) GetBySymbol(ctx context.Context, symbolID int64) ([]model.WeightAdjustment, error) {
	query := `
		SELECT id, symbol_id, ex_date, bonus_shares, rights_issue, rights_price, dividend
		FROM weight_adjustments
		WHERE symbol_id = $1
		ORDER BY ex_date
	`

	var weights []model.WeightAdjustment
	err := r.db.SelectContext(ctx, &weights, query, symbolID)
	if err != nil {
		r.logger.Error("Failed to get weight adjustments",
			zap.Error(err),
			zap.Int64("symbol_id", symbolID))
		return nil, err
	}

	return weights, nil
}

// Append stores one new adjustment record
func (r *WeightRepository) Append(ctx context.Context, w *model.WeightAdjustment) (int64, error) {
	query := `
		INSERT INTO weight_adjustments (symbol_id, ex_date, bonus_shares, rights_issue, rights_price, dividend)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(
		ctx,
		&id,
		query,
		w.SymbolID,
		w.ExDate,
		w.BonusShares,
		w.RightsIssue,
		w.RightsPrice,
		w.Dividend,
	)
	if err != nil {
		r.logger.Error("Failed to append weight adjustment",
			zap.Error(err),
			zap.Int64("symbol_id", w.SymbolID))
		return 0, mapWriteError(err)
	}

	return id, nil
}
