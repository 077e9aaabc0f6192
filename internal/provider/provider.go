package provider

import (
	"context"
	"fmt"
)

// State is the provider-reported lifecycle state of one generation request,
// normalized across backends.
type State string

const (
	StateQueued    State = "queued"
	StateDreaming  State = "dreaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Generation is the normalized status of a submitted generation request.
type Generation struct {
	ID            string
	State         State
	VideoURL      string
	FailureReason string
}

// SubmitRequest describes one clip to generate. ContinuationRef, when set,
// is the provider id of the prior clip the new clip must continue from.
type SubmitRequest struct {
	Prompt          string
	ContinuationRef string
	Seconds         float64
	AspectRatio     string
}

// Client is a video-generation backend. Submit only submits; it never polls.
type Client interface {
	// Submit sends one generation request and returns the provider job id.
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	// GetGeneration fetches the current status of a generation.
	GetGeneration(ctx context.Context, id string) (*Generation, error)
	// MaxClipSeconds is the longest single clip the backend can produce.
	MaxClipSeconds() float64
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	APIKey      string
	BaseURL     string
	Model       string
	Resolution  string
	TimeoutSecs int
}

// New builds the configured backend client.
func New(cfg Config) (Client, error) {
	switch cfg.Backend {
	case "", "luma":
		return NewLumaClient(cfg)
	case "runway":
		return NewRunwayClient(cfg)
	default:
		return nil, fmt.Errorf("unknown video backend %q", cfg.Backend)
	}
}
