package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/crypto-backtest/internal/config"
	"github.com/yourusername/crypto-backtest/internal/models"
)

type fakeMLflow struct {
	mu       sync.Mutex
	runs     int
	batches  []map[string]interface{}
	finished []string
}

func (f *fakeMLflow) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/experiments/get-by-name", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"experiment": map[string]string{"experiment_id": "exp-1"},
		})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/create", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.runs++
		runID := fmt.Sprintf("run-%d", f.runs)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"run": map[string]interface{}{"info": map[string]string{"run_id": runID}},
		})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/log-batch", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		json.Unmarshal(body, &payload)
		f.mu.Lock()
		f.batches = append(f.batches, payload)
		f.mu.Unlock()
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/update", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			RunID string `json:"run_id"`
		}
		json.Unmarshal(body, &payload)
		f.mu.Lock()
		f.finished = append(f.finished, payload.RunID)
		f.mu.Unlock()
		w.Write([]byte("{}"))
	})
	return mux
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.TrackingConfig{
		URL:            server.URL,
		ExperimentName: "crypto-backtests",
		TimeoutSeconds: 5,
		MaxRetries:     0,
		RateLimit:      1000,
	}, log)
}

func TestReportEvaluation_CreatesParentAndNestedRuns(t *testing.T) {
	fake := &fakeMLflow{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server)

	request := &models.BacktestRequest{
		ID:          5,
		Name:        "btc-q1",
		Symbol:      "BTC/USDT",
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		InitialCash: decimal.NewFromInt(10000),
		FeeRate:     decimal.NewFromFloat(0.001),
	}
	results := []*models.StrategyResult{
		{StrategyName: "rsi_bollinger", TotalReturn: 0.1, Score: 0.6, IsBest: true},
		{StrategyName: "macd", TotalReturn: 0.2, Score: 0.4},
	}

	require.NoError(t, client.ReportEvaluation(context.Background(), request, results))

	// One parent plus one run per candidate.
	assert.Equal(t, 3, fake.runs)
	// All runs finished.
	assert.Len(t, fake.finished, 3)
	// Parent params, two candidate batches, one best-strategy batch.
	assert.Len(t, fake.batches, 4)
}

func TestEnsureExperiment_CachesID(t *testing.T) {
	fake := &fakeMLflow{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server)

	id, err := client.EnsureExperiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exp-1", id)

	again, err := client.EnsureExperiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestClient_SurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.EnsureExperiment(context.Background())
	assert.Error(t, err)
}
