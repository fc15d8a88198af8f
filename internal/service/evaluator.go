package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/broker"
	"github.com/yourusername/crypto-backtest/internal/metrics"
	"github.com/yourusername/crypto-backtest/internal/models"
	"github.com/yourusername/crypto-backtest/internal/repository"
	"github.com/yourusername/crypto-backtest/internal/simulation"
)

// BarSource loads the OHLCV window for a backtest.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]simulation.Bar, error)
}

// Simulator runs one strategy over a bar window.
type Simulator interface {
	Run(strategy simulation.Strategy, bars []simulation.Bar, params simulation.RunParams) (*simulation.PerformanceMetrics, error)
}

// Tracker reports a completed evaluation to the experiment tracking server.
type Tracker interface {
	ReportEvaluation(ctx context.Context, request *models.BacktestRequest, results []*models.StrategyResult) error
}

// ResultMessage is the wire format on the result topic. Metrics carries the
// winning candidate's raw metrics keyed by reporting name.
type ResultMessage struct {
	BacktestID   int64              `json:"backtest_id"`
	BestStrategy string             `json:"best_strategy"`
	Score        float64            `json:"score"`
	Metrics      map[string]float64 `json:"metrics"`
}

// EvaluatorConfig wires an Evaluator's collaborators. Tracker and Queue are
// optional; a nil value disables that reporting path.
type EvaluatorConfig struct {
	Requests    repository.BacktestRequestRepository
	Results     repository.StrategyResultRepository
	Bars        BarSource
	Simulator   Simulator
	Tracker     Tracker
	Queue       broker.Queue
	ResultTopic string
	Logger      *logrus.Logger
}

// Evaluator runs the full candidate sweep for one backtest request: load the
// bar window, simulate every candidate, score the batch, persist atomically,
// then report. Evaluate is idempotent across redeliveries.
type Evaluator struct {
	requests    repository.BacktestRequestRepository
	results     repository.StrategyResultRepository
	bars        BarSource
	simulator   Simulator
	tracker     Tracker
	queue       broker.Queue
	resultTopic string
	logger      *logrus.Logger

	ensureMu   sync.Mutex
	topicReady bool
}

// NewEvaluator creates an evaluation orchestrator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{
		requests:    cfg.Requests,
		results:     cfg.Results,
		bars:        cfg.Bars,
		simulator:   cfg.Simulator,
		tracker:     cfg.Tracker,
		queue:       cfg.Queue,
		resultTopic: cfg.ResultTopic,
		logger:      cfg.Logger,
	}
}

// Evaluate processes one dispatched backtest ID end to end.
func (e *Evaluator) Evaluate(ctx context.Context, backtestID int64) error {
	start := time.Now()
	log := e.logger.WithField("backtest_id", backtestID)

	request, err := e.requests.GetByID(ctx, backtestID)
	if err != nil {
		return err
	}

	// Redelivery guard: results are written in one transaction, so any row
	// for this ID means a previous delivery completed the evaluation.
	count, err := e.results.CountByBacktest(ctx, backtestID)
	if err != nil {
		return fmt.Errorf("failed to check for existing results: %w", err)
	}
	if count > 0 {
		log.WithField("existing_results", count).Info("Skipping already evaluated backtest")
		metrics.RecordEvaluation("skipped", time.Since(start).Seconds())
		return nil
	}

	bars, err := e.bars.GetBars(ctx, request.Symbol, request.StartDate, request.EndDate)
	if err != nil {
		metrics.RecordEvaluation("failed", time.Since(start).Seconds())
		return err
	}

	results, err := e.runCandidates(ctx, request, bars)
	if err != nil {
		metrics.RecordEvaluation("failed", time.Since(start).Seconds())
		return err
	}

	best := ScoreResults(results)

	if err := e.results.SaveBatch(ctx, results); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			// Another worker finished the same backtest between the guard
			// check and our commit. Its batch stands.
			log.Info("Concurrent evaluation already persisted results")
			metrics.RecordEvaluation("skipped", time.Since(start).Seconds())
			return nil
		}
		metrics.RecordEvaluation("failed", time.Since(start).Seconds())
		return err
	}

	winner := results[best]
	log.WithFields(logrus.Fields{
		"best_strategy": winner.StrategyName,
		"score":         winner.Score,
		"candidates":    len(results),
	}).Info("Completed backtest evaluation")
	metrics.BestScore.WithLabelValues(request.Symbol, winner.StrategyName).Set(winner.Score)

	e.report(ctx, request, results, winner)

	metrics.RecordEvaluation("completed", time.Since(start).Seconds())
	return nil
}

// runCandidates simulates every candidate, isolating per-candidate failures.
func (e *Evaluator) runCandidates(ctx context.Context, request *models.BacktestRequest, bars []simulation.Bar) ([]*models.StrategyResult, error) {
	params := simulation.RunParams{
		InitialCash: request.InitialCash.InexactFloat64(),
		FeeRate:     request.FeeRate.InexactFloat64(),
	}

	var results []*models.StrategyResult
	for _, name := range models.CandidateStrategies() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation interrupted: %w", err)
		}

		strategy, ok := simulation.ForName(name)
		if !ok {
			return nil, fmt.Errorf("unknown candidate strategy %q", name)
		}

		simStart := time.Now()
		perf, err := e.simulator.Run(strategy, bars, params)
		metrics.SimulationDuration.WithLabelValues(string(name)).Observe(time.Since(simStart).Seconds())
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"backtest_id": request.ID,
				"strategy":    name,
			}).Warn("Candidate simulation failed")
			metrics.RecordCandidateFailure(string(name))
			continue
		}

		results = append(results, &models.StrategyResult{
			BacktestID:     request.ID,
			StrategyName:   string(name),
			TotalReturn:    perf.TotalReturn,
			NumberOfTrades: perf.NumberOfTrades,
			WinningTrades:  perf.WinningTrades,
			LosingTrades:   perf.LosingTrades,
			MaxDrawdown:    perf.MaxDrawdown,
			SharpeRatio:    perf.SharpeRatio,
		})
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: backtest %d", models.ErrEvaluationFailed, request.ID)
	}
	return results, nil
}

// report delivers the outcome to tracking and the result topic. Both paths
// are best effort; the evaluation already committed.
func (e *Evaluator) report(ctx context.Context, request *models.BacktestRequest, results []*models.StrategyResult, winner *models.StrategyResult) {
	if e.tracker != nil {
		if err := e.tracker.ReportEvaluation(ctx, request, results); err != nil {
			e.logger.WithError(err).WithField("backtest_id", request.ID).
				Warn("Failed to report evaluation to tracking server")
			metrics.RecordTrackingError()
		}
	}

	if e.queue == nil || e.resultTopic == "" {
		return
	}

	if err := e.ensureResultTopic(ctx); err != nil {
		e.logger.WithError(err).Warn("Result topic unavailable")
		return
	}

	body, err := json.Marshal(ResultMessage{
		BacktestID:   request.ID,
		BestStrategy: winner.StrategyName,
		Score:        winner.Score,
		Metrics:      winner.MetricsMap(),
	})
	if err != nil {
		e.logger.WithError(err).Warn("Failed to marshal result message")
		return
	}
	if err := e.queue.Publish(ctx, e.resultTopic, body); err != nil {
		e.logger.WithError(err).WithField("backtest_id", request.ID).
			Warn("Failed to publish evaluation result")
	}
}

// ensureResultTopic creates the result topic before the first publish. Only
// success is remembered; a failed attempt is retried on the next evaluation.
func (e *Evaluator) ensureResultTopic(ctx context.Context) error {
	e.ensureMu.Lock()
	defer e.ensureMu.Unlock()
	if e.topicReady {
		return nil
	}
	if err := e.queue.EnsureTopic(ctx, e.resultTopic); err != nil {
		return err
	}
	e.topicReady = true
	return nil
}
