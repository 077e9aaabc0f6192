package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storyreel/storyreel/pkg/log"
)

const (
	defaultLumaBaseURL = "https://api.lumalabs.ai/dream-machine/v1"
	defaultLumaModel   = "ray-2"

	lumaMaxClipSeconds = 9.0
)

// LumaClient talks to the Luma Dream Machine generations API. Thread-safe
// for concurrent use.
type LumaClient struct {
	apiKey     string
	baseURL    string
	model      string
	resolution string
	httpClient *http.Client
}

func NewLumaClient(cfg Config) (*LumaClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("luma api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultLumaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultLumaModel
	}
	resolution := cfg.Resolution
	if resolution == "" {
		resolution = "720p"
	}
	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = 30
	}
	return &LumaClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		resolution: resolution,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

func (c *LumaClient) Name() string { return "luma" }

func (c *LumaClient) MaxClipSeconds() float64 { return lumaMaxClipSeconds }

type lumaKeyframe struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type lumaSubmitRequest struct {
	Prompt      string                  `json:"prompt"`
	Model       string                  `json:"model"`
	AspectRatio string                  `json:"aspect_ratio,omitempty"`
	Duration    string                  `json:"duration,omitempty"`
	Resolution  string                  `json:"resolution,omitempty"`
	Keyframes   map[string]lumaKeyframe `json:"keyframes,omitempty"`
}

type lumaGeneration struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Assets struct {
		Video string `json:"video"`
	} `json:"assets"`
	FailureReason string `json:"failure_reason"`
}

// Submit sends one generation request. When req.ContinuationRef is set, the
// new clip is keyframed on the referenced prior generation so its opening
// frame follows from that clip.
func (c *LumaClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body := lumaSubmitRequest{
		Prompt:      req.Prompt,
		Model:       c.model,
		AspectRatio: req.AspectRatio,
		Duration:    durationLabel(req.Seconds),
		Resolution:  c.resolution,
	}
	if req.ContinuationRef != "" {
		body.Keyframes = map[string]lumaKeyframe{
			"frame0": {Type: "generation", ID: req.ContinuationRef},
		}
	}

	var gen lumaGeneration
	if err := c.do(ctx, http.MethodPost, "/generations", body, &gen); err != nil {
		return "", err
	}
	if gen.ID == "" {
		return "", &RequestError{Backend: c.Name(), StatusCode: http.StatusBadGateway, Message: "generation response missing id"}
	}
	log.Debug("luma generation submitted: id=%s continuation=%s", gen.ID, req.ContinuationRef)
	return gen.ID, nil
}

func (c *LumaClient) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var gen lumaGeneration
	if err := c.do(ctx, http.MethodGet, "/generations/"+id, nil, &gen); err != nil {
		return nil, err
	}
	return &Generation{
		ID:            gen.ID,
		State:         lumaState(gen.State),
		VideoURL:      gen.Assets.Video,
		FailureReason: gen.FailureReason,
	}, nil
}

func lumaState(s string) State {
	switch s {
	case "completed":
		return StateCompleted
	case "failed":
		return StateFailed
	case "dreaming":
		return StateDreaming
	default:
		return StateQueued
	}
}

func (c *LumaClient) do(ctx context.Context, method, path string, payload, out any) error {
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
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("luma request: %w", err)
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

func durationLabel(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%ds", int(seconds))
}
