package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/crypto-backtest/internal/models"
)

func TestDispatcher_PublishesBacktestID(t *testing.T) {
	queue := newFakeQueue()
	dispatcher := NewDispatcher(queue, "backtest_requests", quietLogger())

	require.NoError(t, dispatcher.Dispatch(context.Background(), 99))

	require.Len(t, queue.published["backtest_requests"], 1)
	var msg DispatchMessage
	require.NoError(t, json.Unmarshal(queue.published["backtest_requests"][0], &msg))
	assert.Equal(t, int64(99), msg.BacktestID)
}

func TestDispatcher_EnsuresTopicOnce(t *testing.T) {
	queue := newFakeQueue()
	dispatcher := NewDispatcher(queue, "backtest_requests", quietLogger())

	require.NoError(t, dispatcher.Dispatch(context.Background(), 1))
	require.NoError(t, dispatcher.Dispatch(context.Background(), 2))

	assert.Equal(t, []string{"backtest_requests"}, queue.ensured)
	assert.Len(t, queue.published["backtest_requests"], 2)
}

func TestDispatcher_WrapsBrokerFailures(t *testing.T) {
	queue := newFakeQueue()
	queue.publishErr = errors.New("connection refused")
	dispatcher := NewDispatcher(queue, "backtest_requests", quietLogger())

	err := dispatcher.Dispatch(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrDispatch)
}

func TestDispatcher_RetriesEnsureAfterBrokerRecovery(t *testing.T) {
	queue := newFakeQueue()
	queue.ensureErr = errors.New("connection refused")
	dispatcher := NewDispatcher(queue, "backtest_requests", quietLogger())

	assert.ErrorIs(t, dispatcher.Dispatch(context.Background(), 1), models.ErrDispatch)
	assert.Empty(t, queue.published)

	queue.ensureErr = nil
	require.NoError(t, dispatcher.Dispatch(context.Background(), 2))
	assert.Len(t, queue.published["backtest_requests"], 1)
}
