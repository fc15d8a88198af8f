// Package scheduler periodically redispatches backtest requests that were
// admitted but never evaluated, e.g. because a worker crashed after ack.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/repository"
)

// Dispatcher publishes a backtest ID to the request topic.
type Dispatcher interface {
	Dispatch(ctx context.Context, backtestID int64) error
}

// Redispatcher scans for unevaluated requests on a cron schedule and puts
// them back on the queue.
type Redispatcher struct {
	cron       *cron.Cron
	requests   repository.BacktestRequestRepository
	dispatcher Dispatcher
	staleness  time.Duration
	logger     *logrus.Logger
}

// NewRedispatcher creates a redispatcher. Requests younger than staleness are
// left alone; they are probably still in flight.
func NewRedispatcher(requests repository.BacktestRequestRepository, dispatcher Dispatcher, staleness time.Duration, logger *logrus.Logger) *Redispatcher {
	return &Redispatcher{
		cron:       cron.New(),
		requests:   requests,
		dispatcher: dispatcher,
		staleness:  staleness,
		logger:     logger,
	}
}

// Start registers the sweep on the given cron spec and starts the scheduler.
func (r *Redispatcher) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.sweep); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.WithField("schedule", spec).Info("Redispatch scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *Redispatcher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Redispatch scheduler stopped")
}

// Sweep runs one redispatch pass immediately.
func (r *Redispatcher) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.staleness)
	stale, err := r.requests.ListUnevaluated(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	redispatched := 0
	for _, request := range stale {
		if err := ctx.Err(); err != nil {
			return redispatched, err
		}
		if err := r.dispatcher.Dispatch(ctx, request.ID); err != nil {
			r.logger.WithError(err).WithField("backtest_id", request.ID).
				Warn("Failed to redispatch stale request")
			continue
		}
		redispatched++
	}
	return redispatched, nil
}

func (r *Redispatcher) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := r.Sweep(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Redispatch sweep failed")
		return
	}
	if count > 0 {
		r.logger.WithField("redispatched", count).Info("Redispatched stale backtest requests")
	}
}
