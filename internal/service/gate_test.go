package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/crypto-backtest/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func validAdmitParams() AdmitParams {
	return AdmitParams{
		Name:        "btc-q1",
		Symbol:      "BTC/USDT",
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		InitialCash: decimal.NewFromInt(10000),
		FeeRate:     decimal.NewFromFloat(0.001),
	}
}

func TestGateAdmit_CreatesNewRequest(t *testing.T) {
	repo := new(mockRequestRepo)
	repo.On("GetByNaturalKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.BacktestRequest")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.BacktestRequest).ID = 42
		}).
		Return(nil)

	gate := NewGate(repo, quietLogger())
	request, created, err := gate.Admit(context.Background(), validAdmitParams())

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(42), request.ID)
	repo.AssertExpectations(t)
}

func TestGateAdmit_ResolvesResubmissionWithoutWriting(t *testing.T) {
	params := validAdmitParams()
	existing := &models.BacktestRequest{ID: 7, Name: params.Name, Symbol: params.Symbol}

	repo := new(mockRequestRepo)
	repo.On("GetByNaturalKey", mock.Anything, params.Name, params.Symbol, params.StartDate, params.EndDate).
		Return(existing, nil)

	gate := NewGate(repo, quietLogger())
	request, created, err := gate.Admit(context.Background(), params)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), request.ID)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGateAdmit_ResolvesConcurrentDuplicateInsert(t *testing.T) {
	params := validAdmitParams()
	existing := &models.BacktestRequest{ID: 7, Name: params.Name, Symbol: params.Symbol}

	// The lookup misses, another submitter wins the insert race, and the
	// gate resolves to the winner's row.
	repo := new(mockRequestRepo)
	repo.On("GetByNaturalKey", mock.Anything, params.Name, params.Symbol, params.StartDate, params.EndDate).
		Return(nil, models.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(models.ErrDuplicateKey)
	repo.On("GetByNaturalKey", mock.Anything, params.Name, params.Symbol, params.StartDate, params.EndDate).
		Return(existing, nil)

	gate := NewGate(repo, quietLogger())
	request, created, err := gate.Admit(context.Background(), params)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), request.ID)
	repo.AssertExpectations(t)
}

func TestGateAdmit_AcceptsSingleDayWindow(t *testing.T) {
	params := validAdmitParams()
	params.EndDate = params.StartDate

	repo := new(mockRequestRepo)
	repo.On("GetByNaturalKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	gate := NewGate(repo, quietLogger())
	_, created, err := gate.Admit(context.Background(), params)

	require.NoError(t, err)
	assert.True(t, created)
}

func TestGateAdmit_RejectsInvalidParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AdmitParams)
	}{
		{"empty name", func(p *AdmitParams) { p.Name = "" }},
		{"malformed symbol", func(p *AdmitParams) { p.Symbol = "BTCUSDT; DROP TABLE" }},
		{"start after end", func(p *AdmitParams) { p.StartDate, p.EndDate = p.EndDate, p.StartDate }},
		{"zero cash", func(p *AdmitParams) { p.InitialCash = decimal.Zero }},
		{"negative fee", func(p *AdmitParams) { p.FeeRate = decimal.NewFromFloat(-0.01) }},
	}

	gate := NewGate(new(mockRequestRepo), quietLogger())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validAdmitParams()
			tc.mutate(&params)

			_, _, err := gate.Admit(context.Background(), params)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}
