package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yourorg/market-data-service/internal/model"

	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Store is the relational metadata catalog: markets, symbol types,
// symbols, weight adjustments and the holiday calendar. Every mutating
// call commits before returning; the catalog is small and correctness
// matters more than throughput here.
type Store struct {
	Markets  *MarketRepository
	Types    *SymbolTypeRepository
	Symbols  *SymbolRepository
	Weights  *WeightRepository
	Holidays *HolidayRepository
}

// NewStore creates the catalog repositories over one database handle.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{
		Markets:  NewMarketRepository(db, logger),
		Types:    NewSymbolTypeRepository(db, logger),
		Symbols:  NewSymbolRepository(db, logger),
		Weights:  NewWeightRepository(db, logger),
		Holidays: NewHolidayRepository(db, logger),
	}
}

// LoadAll produces the full catalog snapshot used at registry startup.
func (s *Store) LoadAll(ctx context.Context) (*model.Catalog, error) {
	markets, err := s.Markets.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	types, err := s.Types.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symbol types: %w", err)
	}
	symbols, err := s.Symbols.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	weights, err := s.Weights.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weight adjustments: %w", err)
	}
	holidays, err := s.Holidays.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return &model.Catalog{
		Markets:  markets,
		Types:    types,
		Symbols:  symbols,
		Weights:  weights,
		Holidays: holidays,
	}, nil
}

// mapWriteError converts driver errors into the catalog error taxonomy:
// unique violations become ErrConstraintViolation, foreign-key misses
// become ErrNotFound.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", model.ErrConstraintViolation, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: referenced row missing (%s)", model.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

// mapReadError converts a row miss into ErrNotFound.
func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
