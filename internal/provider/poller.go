package provider

import (
	"context"
	"time"

	"github.com/storyreel/storyreel/pkg/log"
)

type TerminalStatus string

const (
	TerminalSucceeded TerminalStatus = "succeeded"
	TerminalFailed    TerminalStatus = "failed"
	TerminalTimeout   TerminalStatus = "timeout"
)

// PollResult is the terminal outcome of waiting on one generation.
type PollResult struct {
	Status        TerminalStatus
	VideoURL      string
	FailureReason string
}

// ProgressFunc is invoked once per poll attempt with the attempt number
// (1-based) and the last observed provider state.
type ProgressFunc func(attempt int, state State)

// Poller waits for a submitted generation to reach a terminal state, polling
// on a fixed interval with a bounded attempt budget.
type Poller struct {
	client      Client
	interval    time.Duration
	maxAttempts int
}

func NewPoller(client Client, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &Poller{client: client, interval: interval, maxAttempts: maxAttempts}
}

// AwaitTerminal polls until the generation completes, fails, or the attempt
// budget is exhausted. Transient poll errors are logged and retried on the
// next tick; they never end the wait by themselves. The returned error is
// non-nil only when ctx is cancelled.
func (p *Poller) AwaitTerminal(ctx context.Context, id string, onAttempt ProgressFunc) (PollResult, error) {
	lastState := StateQueued

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		gen, err := p.client.GetGeneration(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return PollResult{}, ctx.Err()
			}
			log.Warn("poll attempt %d/%d for %s failed: %v", attempt, p.maxAttempts, id, err)
		} else {
			lastState = gen.State
			switch gen.State {
			case StateCompleted:
				if gen.VideoURL == "" {
					// Completed without an asset is a provider bug, not a success.
					return PollResult{
						Status:        TerminalFailed,
						FailureReason: "generation completed without a video asset",
					}, nil
				}
				return PollResult{Status: TerminalSucceeded, VideoURL: gen.VideoURL}, nil
			case StateFailed:
				reason := gen.FailureReason
				if reason == "" {
					reason = "generation failed"
				}
				return PollResult{Status: TerminalFailed, FailureReason: reason}, nil
			}
		}

		if onAttempt != nil {
			onAttempt(attempt, lastState)
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	return PollResult{Status: TerminalTimeout, FailureReason: "polling attempts exhausted"}, nil
}
