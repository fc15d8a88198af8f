package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/broker"
	"github.com/yourusername/crypto-backtest/internal/metrics"
	"github.com/yourusername/crypto-backtest/internal/models"
)

// DispatchMessage is the wire format on the request topic. Workers only need
// the ID; everything else is reloaded from the store.
type DispatchMessage struct {
	BacktestID int64 `json:"backtest_id"`
}

// Dispatcher hands admitted requests to the evaluation queue.
type Dispatcher struct {
	queue  broker.Queue
	topic  string
	logger *logrus.Logger

	mu      sync.Mutex
	ensured bool
}

// NewDispatcher creates a dispatcher publishing to the given topic.
func NewDispatcher(queue broker.Queue, topic string, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, topic: topic, logger: logger}
}

// ensureTopic creates the topic before the first publish. Only success is
// remembered; a failed attempt is retried on the next dispatch.
func (d *Dispatcher) ensureTopic(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ensured {
		return nil
	}
	if err := d.queue.EnsureTopic(ctx, d.topic); err != nil {
		return err
	}
	d.ensured = true
	return nil
}

// Dispatch publishes the backtest ID to the request topic, creating the
// topic on first use.
func (d *Dispatcher) Dispatch(ctx context.Context, backtestID int64) error {
	if err := d.ensureTopic(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDispatch, err)
	}

	body, err := json.Marshal(DispatchMessage{BacktestID: backtestID})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDispatch, err)
	}

	if err := d.queue.Publish(ctx, d.topic, body); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDispatch, err)
	}

	d.logger.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"topic":       d.topic,
	}).Info("Dispatched backtest request")
	metrics.RecordDispatch()
	return nil
}
