package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/crypto-backtest/internal/database"
	"github.com/yourusername/crypto-backtest/internal/models"
)

const backtestRequestColumns = "id, name, symbol, start_date, end_date, initial_cash, fee_rate, created_at"

// PostgresBacktestRequestRepository implements BacktestRequestRepository for PostgreSQL
type PostgresBacktestRequestRepository struct {
	db *database.DB
}

// NewPostgresBacktestRequestRepository creates a new backtest request repository
func NewPostgresBacktestRequestRepository(db *database.DB) BacktestRequestRepository {
	return &PostgresBacktestRequestRepository{db: db}
}

// Create inserts a backtest request and populates its ID and CreatedAt
func (r *PostgresBacktestRequestRepository) Create(ctx context.Context, request *models.BacktestRequest) error {
	query := `
		INSERT INTO backtest_requests (name, symbol, start_date, end_date, initial_cash, fee_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		request.Name, request.Symbol, request.StartDate, request.EndDate,
		request.InitialCash, request.FeeRate,
	).Scan(&request.ID, &request.CreatedAt)
	if err != nil {
		if mapped := mapConstraintError(err); errors.Is(mapped, models.ErrDuplicateKey) {
			return mapped
		}
		return fmt.Errorf("failed to create backtest request: %w", err)
	}
	return nil
}

// GetByID retrieves a backtest request by primary key
func (r *PostgresBacktestRequestRepository) GetByID(ctx context.Context, id int64) (*models.BacktestRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM backtest_requests WHERE id = $1", backtestRequestColumns)

	request, err := r.scanOne(r.db.GetPool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: backtest request %d", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get backtest request: %w", err)
	}
	return request, nil
}

// GetByNaturalKey retrieves a backtest request by its unique tuple
func (r *PostgresBacktestRequestRepository) GetByNaturalKey(ctx context.Context, name, symbol string, startDate, endDate time.Time) (*models.BacktestRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM backtest_requests
		WHERE name = $1 AND symbol = $2 AND start_date = $3 AND end_date = $4
	`, backtestRequestColumns)

	request, err := r.scanOne(r.db.GetPool().QueryRow(ctx, query, name, symbol, startDate, endDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: backtest request %q", models.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get backtest request by natural key: %w", err)
	}
	return request, nil
}

// ListUnevaluated retrieves requests created before cutoff with no stored results
func (r *PostgresBacktestRequestRepository) ListUnevaluated(ctx context.Context, cutoff time.Time) ([]*models.BacktestRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM backtest_requests br
		WHERE br.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM strategy_results sr WHERE sr.backtest_id = br.id
		  )
		ORDER BY br.created_at
	`, backtestRequestColumns)

	rows, err := r.db.GetPool().Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query unevaluated requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.BacktestRequest
	for rows.Next() {
		request := &models.BacktestRequest{}
		if err := rows.Scan(
			&request.ID, &request.Name, &request.Symbol, &request.StartDate, &request.EndDate,
			&request.InitialCash, &request.FeeRate, &request.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func (r *PostgresBacktestRequestRepository) scanOne(row pgx.Row) (*models.BacktestRequest, error) {
	request := &models.BacktestRequest{}
	err := row.Scan(
		&request.ID, &request.Name, &request.Symbol, &request.StartDate, &request.EndDate,
		&request.InitialCash, &request.FeeRate, &request.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return request, nil
}
