// Package worker runs the queue consumer loop that feeds dispatched backtest
// requests to the evaluator.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/broker"
	"github.com/yourusername/crypto-backtest/internal/metrics"
	"github.com/yourusername/crypto-backtest/internal/models"
	"github.com/yourusername/crypto-backtest/internal/service"
)

// State is the consumer loop's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateProcessing
	StateShuttingDown
	StateStopped
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Handler processes one dispatched backtest ID.
type Handler interface {
	Evaluate(ctx context.Context, backtestID int64) error
}

// Loop polls the request topic and hands each message to the handler. Polls
// block for a bounded interval so cancellation is observed promptly; a quiet
// topic is not an error. Messages are acknowledged after handling, including
// handler failures, so a poison message cannot wedge the consumer group.
// Recovery for failed evaluations is explicit redispatch.
type Loop struct {
	queue   broker.Queue
	topic   string
	handler Handler
	logger  *logrus.Logger
	state   atomic.Int32
}

// NewLoop creates a consumer loop.
func NewLoop(queue broker.Queue, topic string, handler Handler, logger *logrus.Logger) *Loop {
	return &Loop{queue: queue, topic: topic, handler: handler, logger: logger}
}

// State returns the loop's current lifecycle phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	metrics.WorkerState.Set(float64(s))
}

// Run consumes until ctx is cancelled or the broker fails fatally. A clean
// shutdown returns nil; a broker failure returns models.ErrBrokerFatal.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.queue.EnsureTopic(ctx, l.topic); err != nil {
		l.setState(StateStopped)
		return fmt.Errorf("%w: %v", models.ErrBrokerFatal, err)
	}

	l.logger.WithField("topic", l.topic).Info("Consumer loop starting")

	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		default:
		}

		l.setState(StatePolling)
		msg, err := l.queue.Poll(ctx, l.topic)
		if err != nil {
			if ctx.Err() != nil {
				return l.shutdown()
			}
			l.setState(StateStopped)
			l.logger.WithError(err).Error("Broker poll failed, stopping consumer")
			return fmt.Errorf("%w: %v", models.ErrBrokerFatal, err)
		}
		if msg == nil {
			// Bounded block expired with nothing to do
			continue
		}

		l.setState(StateProcessing)
		l.process(ctx, msg)
	}
}

func (l *Loop) process(ctx context.Context, msg *broker.Message) {
	metrics.RecordMessageConsumed()
	log := l.logger.WithField("message_id", msg.ID)

	var dispatch service.DispatchMessage
	if err := json.Unmarshal(msg.Body, &dispatch); err != nil {
		log.WithError(err).Warn("Discarding malformed message")
		l.ack(ctx, msg)
		return
	}

	if err := l.handler.Evaluate(ctx, dispatch.BacktestID); err != nil {
		fields := log.WithField("backtest_id", dispatch.BacktestID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			fields.WithError(err).Warn("Message references unknown backtest")
		case ctx.Err() != nil:
			fields.WithError(err).Info("Evaluation interrupted by shutdown")
		default:
			fields.WithError(err).Error("Evaluation failed")
		}
	}

	// Ack regardless of outcome; failed evaluations are retried by
	// redispatching, never by redelivery.
	l.ack(ctx, msg)
}

func (l *Loop) ack(ctx context.Context, msg *broker.Message) {
	if err := l.queue.Ack(ctx, l.topic, msg.ID); err != nil {
		l.logger.WithError(err).WithField("message_id", msg.ID).Error("Failed to ack message")
	}
}

func (l *Loop) shutdown() error {
	l.setState(StateShuttingDown)
	l.logger.Info("Consumer loop shutting down")
	l.setState(StateStopped)
	return nil
}
