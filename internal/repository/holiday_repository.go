package repository

import (
	"context"

	"github.com/yourorg/market-data-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// HolidayRepository handles database operations for the holiday calendar
type HolidayRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHolidayRepository creates a new holiday repository
func NewHolidayRepository(db *sqlx.DB, logger *zap.Logger) *HolidayRepository {
	return &HolidayRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll retrieves the holiday set ordered by date
func (r *HolidayRepository) GetAll(ctx context.Context) ([]model.Date, error) {
	query := `SELECT date FROM holidays ORDER BY date`

	var dates []model.Date
	err := r.db.SelectContext(ctx, &dates, query)
	if err != nil {
		r.logger.Error("Failed to get holidays", zap.Error(err))
		return nil, err
	}

	return dates, nil
}

// Reload replaces the holiday set wholesale inside one transaction
func (r *HolidayRepository) Reload(ctx context.Context, dates []model.Date) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holidays`); err != nil {
		r.logger.Error("Failed to clear holidays", zap.Error(err))
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO holidays (date) VALUES ($1)`)
	if err != nil {
		r.logger.Error("Failed to prepare statement", zap.Error(err))
		return err
	}
	defer stmt.Close()

	for _, d := range dates {
		if _, err := stmt.ExecContext(ctx, d); err != nil {
			r.logger.Error("Failed to insert holiday", zap.Error(err), zap.Uint32("date", uint32(d)))
			return mapWriteError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return err
	}

	return nil
}
