// Package tracking reports evaluation outcomes to an MLflow tracking server
// over its REST API.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/crypto-backtest/internal/config"
	"github.com/yourusername/crypto-backtest/internal/models"
	"golang.org/x/time/rate"
)

const (
	apiPrefix = "/api/2.0/mlflow"

	statusFinished = "FINISHED"

	parentRunTag = "mlflow.parentRunId"
	runNameTag   = "mlflow.runName"
)

// Client talks to an MLflow tracking server. All methods are best effort from
// the pipeline's point of view; callers decide whether failures are fatal.
type Client struct {
	baseURL        string
	experimentName string
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *logrus.Logger

	experimentID string
}

// NewClient creates a tracking client with retries and client-side rate
// limiting.
func NewClient(cfg *config.TrackingConfig, logger *logrus.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second

	return &Client{
		baseURL:        cfg.URL,
		experimentName: cfg.ExperimentName,
		httpClient:     httpClient,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:         logger,
	}
}

// EnsureExperiment resolves the configured experiment, creating it on first
// use, and caches its ID.
func (c *Client) EnsureExperiment(ctx context.Context) (string, error) {
	if c.experimentID != "" {
		return c.experimentID, nil
	}

	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := c.post(ctx, "/experiments/get-by-name", map[string]string{
		"experiment_name": c.experimentName,
	}, &got)
	if err == nil && got.Experiment.ExperimentID != "" {
		c.experimentID = got.Experiment.ExperimentID
		return c.experimentID, nil
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	err = c.post(ctx, "/experiments/create", map[string]string{
		"name": c.experimentName,
	}, &created)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment %s: %w", c.experimentName, err)
	}

	c.experimentID = created.ExperimentID
	return c.experimentID, nil
}

// StartRun creates a run under the experiment and returns its ID.
func (c *Client) StartRun(ctx context.Context, runName, parentRunID string) (string, error) {
	experimentID, err := c.EnsureExperiment(ctx)
	if err != nil {
		return "", err
	}

	tags := []tag{{Key: runNameTag, Value: runName}}
	if parentRunID != "" {
		tags = append(tags, tag{Key: parentRunTag, Value: parentRunID})
	}

	var got struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err = c.post(ctx, "/runs/create", map[string]interface{}{
		"experiment_id": experimentID,
		"run_name":      runName,
		"start_time":    time.Now().UnixMilli(),
		"tags":          tags,
	}, &got)
	if err != nil {
		return "", fmt.Errorf("failed to create run %s: %w", runName, err)
	}
	return got.Run.Info.RunID, nil
}

// LogBatch records parameters and metrics against a run in one call.
func (c *Client) LogBatch(ctx context.Context, runID string, params map[string]string, metrics map[string]float64) error {
	now := time.Now().UnixMilli()

	payload := struct {
		RunID   string   `json:"run_id"`
		Params  []param  `json:"params,omitempty"`
		Metrics []metric `json:"metrics,omitempty"`
	}{RunID: runID}

	for k, v := range params {
		payload.Params = append(payload.Params, param{Key: k, Value: v})
	}
	for k, v := range metrics {
		payload.Metrics = append(payload.Metrics, metric{Key: k, Value: v, Timestamp: now})
	}

	if err := c.post(ctx, "/runs/log-batch", payload, nil); err != nil {
		return fmt.Errorf("failed to log batch for run %s: %w", runID, err)
	}
	return nil
}

// EndRun marks a run as finished.
func (c *Client) EndRun(ctx context.Context, runID string) error {
	err := c.post(ctx, "/runs/update", map[string]interface{}{
		"run_id":   runID,
		"status":   statusFinished,
		"end_time": time.Now().UnixMilli(),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to end run %s: %w", runID, err)
	}
	return nil
}

// ReportEvaluation records one completed evaluation: a parent run named after
// the backtest, one nested run per candidate with its metrics, and the winner
// tagged on the parent.
func (c *Client) ReportEvaluation(ctx context.Context, request *models.BacktestRequest, results []*models.StrategyResult) error {
	parentID, err := c.StartRun(ctx, fmt.Sprintf("Backtest_%d", request.ID), "")
	if err != nil {
		return err
	}

	params := map[string]string{
		"backtest_name": request.Name,
		"symbol":        request.Symbol,
		"start_date":    request.StartDate.Format("2006-01-02"),
		"end_date":      request.EndDate.Format("2006-01-02"),
		"initial_cash":  request.InitialCash.String(),
		"fee_rate":      request.FeeRate.String(),
	}
	if err := c.LogBatch(ctx, parentID, params, nil); err != nil {
		return err
	}

	for _, result := range results {
		runID, err := c.StartRun(ctx, result.StrategyName, parentID)
		if err != nil {
			return err
		}

		metrics := result.MetricsMap()
		metrics["score"] = result.Score
		strategyParams := map[string]string{
			"strategy": result.StrategyName,
			"is_best":  fmt.Sprintf("%t", result.IsBest),
		}
		if err := c.LogBatch(ctx, runID, strategyParams, metrics); err != nil {
			return err
		}
		if err := c.EndRun(ctx, runID); err != nil {
			return err
		}

		if result.IsBest {
			best := map[string]string{"best_strategy": result.StrategyName}
			if err := c.LogBatch(ctx, parentID, best, map[string]float64{"best_score": result.Score}); err != nil {
				return err
			}
		}
	}

	return c.EndRun(ctx, parentID)
}

type param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

type tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tracking server returned %d for %s: %s", resp.StatusCode, path, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}
