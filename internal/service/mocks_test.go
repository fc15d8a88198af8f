package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yourusername/crypto-backtest/internal/broker"
	"github.com/yourusername/crypto-backtest/internal/models"
	"github.com/yourusername/crypto-backtest/internal/simulation"
)

type mockRequestRepo struct {
	mock.Mock
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.BacktestRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*models.BacktestRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BacktestRequest), args.Error(1)
}

func (m *mockRequestRepo) GetByNaturalKey(ctx context.Context, name, symbol string, startDate, endDate time.Time) (*models.BacktestRequest, error) {
	args := m.Called(ctx, name, symbol, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BacktestRequest), args.Error(1)
}

func (m *mockRequestRepo) ListUnevaluated(ctx context.Context, cutoff time.Time) ([]*models.BacktestRequest, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BacktestRequest), args.Error(1)
}

type mockResultRepo struct {
	mock.Mock
}

func (m *mockResultRepo) SaveBatch(ctx context.Context, results []*models.StrategyResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

func (m *mockResultRepo) CountByBacktest(ctx context.Context, backtestID int64) (int, error) {
	args := m.Called(ctx, backtestID)
	return args.Int(0), args.Error(1)
}

func (m *mockResultRepo) GetByBacktest(ctx context.Context, backtestID int64) ([]*models.StrategyResult, error) {
	args := m.Called(ctx, backtestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StrategyResult), args.Error(1)
}

func (m *mockResultRepo) GetBest(ctx context.Context, backtestID int64) (*models.StrategyResult, error) {
	args := m.Called(ctx, backtestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StrategyResult), args.Error(1)
}

type mockBarSource struct {
	mock.Mock
}

func (m *mockBarSource) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]simulation.Bar, error) {
	args := m.Called(ctx, symbol, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]simulation.Bar), args.Error(1)
}

type mockSimulator struct {
	mock.Mock
}

func (m *mockSimulator) Run(strategy simulation.Strategy, bars []simulation.Bar, params simulation.RunParams) (*simulation.PerformanceMetrics, error) {
	args := m.Called(strategy, bars, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*simulation.PerformanceMetrics), args.Error(1)
}

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) ReportEvaluation(ctx context.Context, request *models.BacktestRequest, results []*models.StrategyResult) error {
	args := m.Called(ctx, request, results)
	return args.Error(0)
}

// fakeQueue is an in-memory broker.Queue for dispatch and reporting tests.
type fakeQueue struct {
	mu         sync.Mutex
	ensured    []string
	published  map[string][][]byte
	ensureErr  error
	publishErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: make(map[string][][]byte)}
}

func (q *fakeQueue) EnsureTopic(ctx context.Context, topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensureErr != nil {
		return q.ensureErr
	}
	q.ensured = append(q.ensured, topic)
	return nil
}

func (q *fakeQueue) Publish(ctx context.Context, topic string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published[topic] = append(q.published[topic], body)
	return nil
}

func (q *fakeQueue) Poll(ctx context.Context, topic string) (*broker.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Ack(ctx context.Context, topic string, messageID string) error {
	return nil
}

func (q *fakeQueue) Ping(ctx context.Context) error { return nil }

func (q *fakeQueue) Close() error { return nil }
