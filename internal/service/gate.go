// Package service implements the backtest pipeline: request admission,
// dispatch, evaluation and scoring.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/marketdata"
	"github.com/yourusername/crypto-backtest/internal/metrics"
	"github.com/yourusername/crypto-backtest/internal/models"
	"github.com/yourusername/crypto-backtest/internal/repository"
)

// AdmitParams are the caller-supplied fields of a backtest request.
type AdmitParams struct {
	Name        string
	Symbol      string
	StartDate   time.Time
	EndDate     time.Time
	InitialCash decimal.Decimal
	FeeRate     decimal.Decimal
}

// Gate admits backtest requests idempotently. Resubmitting the same
// (name, symbol, start, end) tuple resolves to the already stored request.
type Gate struct {
	requests repository.BacktestRequestRepository
	logger   *logrus.Logger
}

// NewGate creates a request gate.
func NewGate(requests repository.BacktestRequestRepository, logger *logrus.Logger) *Gate {
	return &Gate{requests: requests, logger: logger}
}

// Admit validates the parameters and stores the request, or resolves it to
// the existing one. The boolean reports whether a new row was created.
func (g *Gate) Admit(ctx context.Context, params AdmitParams) (*models.BacktestRequest, bool, error) {
	if err := validateAdmitParams(params); err != nil {
		return nil, false, err
	}

	// Fast path: a resubmission resolves without writing anything.
	existing, err := g.requests.GetByNaturalKey(ctx, params.Name, params.Symbol, params.StartDate, params.EndDate)
	if err == nil {
		g.logger.WithFields(logrus.Fields{
			"backtest_id": existing.ID,
			"name":        existing.Name,
		}).Info("Resolved resubmitted backtest request")
		metrics.RecordAdmission(false)
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up backtest request: %w", err)
	}

	request := &models.BacktestRequest{
		Name:        params.Name,
		Symbol:      params.Symbol,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		InitialCash: params.InitialCash,
		FeeRate:     params.FeeRate,
	}

	err = g.requests.Create(ctx, request)
	if err == nil {
		g.logger.WithFields(logrus.Fields{
			"backtest_id": request.ID,
			"name":        request.Name,
			"symbol":      request.Symbol,
		}).Info("Admitted new backtest request")
		metrics.RecordAdmission(true)
		return request, true, nil
	}

	if !errors.Is(err, models.ErrDuplicateKey) {
		return nil, false, fmt.Errorf("failed to admit backtest request: %w", err)
	}

	// A concurrent submission won the insert race. Resolve to the winner's
	// row so the caller still gets a usable ID.
	existing, err = g.requests.GetByNaturalKey(ctx, params.Name, params.Symbol, params.StartDate, params.EndDate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve duplicate backtest request: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"backtest_id": existing.ID,
		"name":        existing.Name,
	}).Info("Resolved resubmitted backtest request")
	metrics.RecordAdmission(false)
	return existing, false, nil
}

func validateAdmitParams(params AdmitParams) error {
	if params.Name == "" {
		return fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	if _, err := marketdata.TableForSymbol(params.Symbol); err != nil {
		return err
	}
	if params.StartDate.IsZero() || params.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", models.ErrValidation)
	}
	if params.StartDate.After(params.EndDate) {
		return fmt.Errorf("%w: start date must not be after end date", models.ErrValidation)
	}
	if params.InitialCash.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial cash must be positive", models.ErrValidation)
	}
	if params.FeeRate.IsNegative() {
		return fmt.Errorf("%w: fee rate must not be negative", models.ErrValidation)
	}
	return nil
}
