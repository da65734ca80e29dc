package repository

import (
	"context"

	"github.com/yourorg/market-data-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SymbolRepository handles database operations for symbols
type SymbolRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSymbolRepository creates a new symbol repository
func NewSymbolRepository(db *sqlx.DB, logger *zap.Logger) *SymbolRepository {
	return &SymbolRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll retrieves all symbols, delisted ones included
func (r *SymbolRepository) GetAll(ctx context.Context) ([]model.Symbol, error) {
	query := `
		SELECT id, market_id, code, name, type_id, valid, start_date, end_date
		FROM symbols
		ORDER BY market_id, code
	`

	var symbols []model.Symbol
	err := r.db.SelectContext(ctx, &symbols, query)
	if err != nil {
		r.logger.Error("Failed to get symbols", zap.Error(err))
		return nil, err
	}

	return symbols, nil
}

// GetByMarket retrieves the symbols of one market
func (r *SymbolRepository) GetByMarket(ctx context.Context, marketID int64) ([]model.Symbol, error) {
	query := `
		SELECT id, market_id, code, name, type_id, valid, start_date, end_date
		FROM symbols
		WHERE market_id = $1
		ORDER BY code
	`

	var symbols []model.Symbol
	err := r.db.SelectContext(ctx, &symbols, query, marketID)
	if err != nil {
		r.logger.Error("Failed to get symbols by market",
			zap.Error(err),
			zap.Int64("market_id", marketID))
		return nil, err
	}

	return symbols, nil
}

// Upsert inserts a symbol or refreshes an existing (market, code) row.
// Symbols are append-only history: rows are never deleted, a delisting
// flips valid and sets end_date.
func (r *SymbolRepository) Upsert(ctx context.Context, symbol *model.Symbol) (int64, error) {
	query := `
		INSERT INTO symbols (market_id, code, name, type_id, valid, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (market_id, code)
		DO UPDATE SET
			name = EXCLUDED.name,
			type_id = EXCLUDED.type_id,
			valid = EXCLUDED.valid,
			start_date = LEAST(symbols.start_date, EXCLUDED.start_date),
			end_date = EXCLUDED.end_date
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(
		ctx,
		&id,
		query,
		symbol.MarketID,
		symbol.Code,
		symbol.Name,
		symbol.TypeID,
		symbol.Valid,
		symbol.StartDate,
		symbol.EndDate,
	)
	if err != nil {
		r.logger.Error("Failed to upsert symbol",
			zap.Error(err),
			zap.String("code", symbol.Code))
		return 0, mapWriteError(err)
	}

	return id, nil
}

// Create inserts a new symbol, rejecting duplicate (market, code) pairs
func (r *SymbolRepository) Create(ctx context.Context, symbol *model.Symbol) (int64, error) {
	query := `
		INSERT INTO symbols (market_id, code, name, type_id, valid, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(
		ctx,
		&id,
		query,
		symbol.MarketID,
		symbol.Code,
		symbol.Name,
		symbol.TypeID,
		symbol.Valid,
		symbol.StartDate,
		symbol.EndDate,
	)
	if err != nil {
		return 0, mapWriteError(err)
	}

	return id, nil
}

// Delist marks a symbol invalid with its final trading date
func (r *SymbolRepository) Delist(ctx context.Context, symbolID int64, endDate model.Date) error {
	query := `
		UPDATE symbols
		SET valid = FALSE, end_date = $1
		WHERE id = $2
	`

	res, err := r.db.ExecContext(ctx, query, endDate, symbolID)
	if err != nil {
		r.logger.Error("Failed to delist symbol", zap.Error(err), zap.Int64("id", symbolID))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}

	return nil
}

// UpdateStartDate records the first stored bar date after an import.
// The stored date only ever moves earlier, matching the in-memory
// catalog update.
func (r *SymbolRepository) UpdateStartDate(ctx context.Context, symbolID int64, startDate model.Date) error {
	query := `
		UPDATE symbols
		SET valid = TRUE, start_date = LEAST(start_date, $1), end_date = $2
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, startDate, model.OpenEndDate, symbolID)
	if err != nil {
		r.logger.Error("Failed to update symbol start date",
			zap.Error(err),
			zap.Int64("id", symbolID))
		return err
	}

	return nil
}
