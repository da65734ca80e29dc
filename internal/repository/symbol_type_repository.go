package repository

import (
	"context"

	"github.com/yourorg/market-data-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SymbolTypeRepository handles database operations for symbol types
type SymbolTypeRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSymbolTypeRepository creates a new symbol type repository
func NewSymbolTypeRepository(db *sqlx.DB, logger *zap.Logger) *SymbolTypeRepository {
	return &SymbolTypeRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll retrieves all symbol types
func (r *SymbolTypeRepository) GetAll(ctx context.Context) ([]model.SymbolType, error) {
	query := `
		SELECT id, tick, tick_value, precision, min_trade_unit, max_trade_unit
		FROM symbol_types
		ORDER BY id
	`

	var types []model.SymbolType
	err := r.db.SelectContext(ctx, &types, query)
	if err != nil {
		r.logger.Error("Failed to get symbol types", zap.Error(err))
		return nil, err
	}

	return types, nil
}

// GetByID retrieves one symbol type
func (r *SymbolTypeRepository) GetByID(ctx context.Context, id int64) (*model.SymbolType, error) {
	query := `
		SELECT id, tick, tick_value, precision, min_trade_unit, max_trade_unit
		FROM symbol_types
		WHERE id = $1
	`

	var t model.SymbolType
	err := r.db.GetContext(ctx, &t, query, id)
	if err != nil {
		return nil, mapReadError(err)
	}

	return &t, nil
}
