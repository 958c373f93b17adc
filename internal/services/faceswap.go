package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
)

// Face-swap task states reported by the task API.
const (
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
	TaskPending    = "pending"
	TaskProcessing = "processing"
)

type FaceSwapInput struct {
	TargetImageURL string `json:"target_image"`
	SwapImageURL   string `json:"swap_image"`
}

type TaskStatus struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Output struct {
		ImageURL string `json:"image_url"`
	} `json:"output"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// TaskAPI is the polling-based face-swap task adapter.
type TaskAPI interface {
	Submit(ctx context.Context, input FaceSwapInput) (string, error)
	GetStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	// Fetch downloads a finished task artifact.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type taskEnvelope struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    TaskStatus `json:"data"`
}

type faceSwapClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFaceSwapClient(cfg config.FaceSwapConfig, client *http.Client) TaskAPI {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &faceSwapClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (c *faceSwapClient) Submit(ctx context.Context, input FaceSwapInput) (string, error) {
	payload := map[string]any{
		"model":     "Qubico/image-toolkit",
		"task_type": "face-swap",
		"input":     input,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal face swap task")
	}

	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/task", bytes.NewReader(body), &out); err != nil {
		return "", errors.Wrap(err, "submit face swap task")
	}
	if out.Data.TaskID == "" {
		return "", errors.Newf("face swap task rejected: %s", out.Message)
	}
	return out.Data.TaskID, nil
}

func (c *faceSwapClient) GetStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/task/%s", c.baseURL, taskID), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "get status of task %s", taskID)
	}
	out.Data.Status = strings.ToLower(out.Data.Status)
	return &out.Data, nil
}

func (c *faceSwapClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build fetch request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch task output")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("fetch task output: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *faceSwapClient) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PollResult summarises a bounded polling run.
type PollResult struct {
	Success  bool
	Attempts int
	Status   *TaskStatus
}

// Poller waits for a task to finish: one initial status check plus up to
// MaxRetries further checks, Interval apart.
type Poller struct {
	API        TaskAPI
	Interval   time.Duration
	MaxRetries int
	Log        *zap.SugaredLogger
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(api TaskAPI, cfg config.FaceSwapConfig, log *zap.SugaredLogger) *Poller {
	return &Poller{API: api, Interval: cfg.PollInterval, MaxRetries: cfg.MaxRetries, Log: log}
}

// Poll never returns an error for an unfinished task; it reports Success false.
// Only context cancellation is returned as an error.
func (p *Poller) Poll(ctx context.Context, taskID string) (PollResult, error) {
	log := logger.OrNop(p.Log)
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var result PollResult
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Interval); err != nil {
				return result, err
			}
		}

		result.Attempts++
		status, err := p.API.GetStatus(ctx, taskID)
		if err != nil {
			log.Warnw("⚠️ Task status check failed", "task_id", taskID, "attempt", result.Attempts, "error", err)
			continue
		}
		result.Status = status

		switch status.Status {
		case TaskCompleted:
			result.Success = true
			return result, nil
		case TaskFailed:
			log.Warnw("❌ Task failed", "task_id", taskID, "reason", status.Error.Message)
			return result, nil
		}
		log.Debugw("⏳ Task still running", "task_id", taskID, "status", status.Status, "attempt", result.Attempts)
	}

	log.Warnw("❌ Task did not finish within retry budget", "task_id", taskID, "attempts", result.Attempts)
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
