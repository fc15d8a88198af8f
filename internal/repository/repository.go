package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/models"
)

// Postgres error code for unique constraint violations.
const uniqueViolationCode = "23505"

// Repositories holds all repository implementations
type Repositories struct {
	BacktestRequest BacktestRequestRepository
	StrategyResult  StrategyResultRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		BacktestRequest: NewPostgresBacktestRequestRepository(db),
		StrategyResult:  NewPostgresStrategyResultRepository(db),
	}, nil
}

// isUniqueViolation reports whether err is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// mapConstraintError translates driver-level constraint errors into sentinel
// errors callers can branch on
func mapConstraintError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", models.ErrDuplicateKey, err)
	}
	return err
}
