package repository

import (
	"context"

	"github.com/yourorg/market-data-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// MarketRepository handles database operations for markets
type MarketRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *sqlx.DB, logger *zap.Logger) *MarketRepository {
	return &MarketRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll retrieves all markets
func (r *MarketRepository) GetAll(ctx context.Context) ([]model.Market, error) {
	query := `
		SELECT id, code, name, index_code, last_date
		FROM markets
		ORDER BY id
	`

	var markets []model.Market
	err := r.db.SelectContext(ctx, &markets, query)
	if err != nil {
		r.logger.Error("Failed to get markets", zap.Error(err))
		return nil, err
	}

	return markets, nil
}

// GetByCode retrieves a market by its short code
func (r *MarketRepository) GetByCode(ctx context.Context, code string) (*model.Market, error) {
	query := `
		SELECT id, code, name, index_code, last_date
		FROM markets
		WHERE code = $1
	`

	var market model.Market
	err := r.db.GetContext(ctx, &market, query, code)
	if err != nil {
		return nil, mapReadError(err)
	}

	return &market, nil
}

// Create inserts a new market
func (r *MarketRepository) Create(ctx context.Context, market *model.Market) (int64, error) {
	query := `
		INSERT INTO markets (code, name, index_code, last_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(ctx, &id, query, market.Code, market.Name, market.IndexCode, market.LastDate)
	if err != nil {
		r.logger.Error("Failed to create market", zap.Error(err), zap.String("code", market.Code))
		return 0, mapWriteError(err)
	}

	return id, nil
}

// UpdateLastDate advances a market's last known trading date. LastDate
// is the only mutable market field.
func (r *MarketRepository) UpdateLastDate(ctx context.Context, marketID int64, lastDate model.Date) error {
	query := `
		UPDATE markets
		SET last_date = $1
		WHERE id = $2 AND last_date < $1
	`

	_, err := r.db.ExecContext(ctx, query, lastDate, marketID)
	if err != nil {
		r.logger.Error("Failed to update market last date",
			zap.Error(err),
			zap.Int64("market_id", marketID))
		return err
	}

	return nil
}
