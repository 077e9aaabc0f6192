package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultRunwayBaseURL = "https://api.dev.runwayml.com/v1"
	defaultRunwayModel   = "gen3a_turbo"
	runwayAPIVersion     = "2024-11-06"

	runwayMaxClipSeconds = 10.0
)

// RunwayClient is the Runway task-based backend. Task statuses are mapped
// onto the same normalized states the orchestrator understands.
type RunwayClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewRunwayClient(cfg Config) (*RunwayClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("runway api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultRunwayBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultRunwayModel
	}
	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = 30
	}
	return &RunwayClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

func (c *RunwayClient) Name() string { return "runway" }

func (c *RunwayClient) MaxClipSeconds() float64 { return runwayMaxClipSeconds }

type runwaySubmitRequest struct {
	PromptText string `json:"promptText"`
	Model      string `json:"model"`
	Duration   int    `json:"duration,omitempty"`
	Ratio      string `json:"ratio,omitempty"`
	SeedTaskID string `json:"seedTaskId,omitempty"`
}

type runwayTask struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

func (c *RunwayClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body := runwaySubmitRequest{
		PromptText: req.Prompt,
		Model:      c.model,
		Duration:   int(req.Seconds),
		Ratio:      req.AspectRatio,
		SeedTaskID: req.ContinuationRef,
	}

	var task runwayTask
	if err := c.do(ctx, http.MethodPost, "/text_to_video", body, &task); err != nil {
		return "", err
	}
	if task.ID == "" {
		return "", &RequestError{Backend: c.Name(), StatusCode: http.StatusBadGateway, Message: "task response missing id"}
	}
	return task.ID, nil
}

func (c *RunwayClient) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var task runwayTask
	if err := c.do(ctx, http.MethodGet, "/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	gen := &Generation{
		ID:            task.ID,
		State:         runwayState(task.Status),
		FailureReason: task.Failure,
	}
	if len(task.Output) > 0 {
		gen.VideoURL = task.Output[0]
	}
	return gen, nil
}

func runwayState(status string) State {
	switch status {
	case "SUCCEEDED":
		return StateCompleted
	case "FAILED", "CANCELLED":
		return StateFailed
	case "RUNNING":
		return StateDreaming
	default: // PENDING, THROTTLED
		return StateQueued
	}
}

func (c *RunwayClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runway request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{
			Backend:    c.Name(),
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
