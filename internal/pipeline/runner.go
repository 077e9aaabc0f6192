package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/storyreel/storyreel/internal/jobs"
	"github.com/storyreel/storyreel/internal/media"
	"github.com/storyreel/storyreel/internal/provider"
	"github.com/storyreel/storyreel/internal/storyboard"
	"github.com/storyreel/storyreel/pkg/log"
)

// JobSink receives incremental state while a job is being generated. The
// jobs.Queue satisfies it; tests use lighter fakes.
type JobSink interface {
	UpdateProgress(id string, progress int, step string)
	SetStoryboard(id string, scenes []jobs.Scene, storyCtx *jobs.StoryContext)
	AppendSceneResult(id string, result jobs.SceneResult)
	SetOutput(id string, videoURL string)
	SetErrorDetail(id string, detail string)
}

// Prober measures real clip durations after generation.
type Prober interface {
	ProbeDuration(ctx context.Context, videoURL string, nominalSeconds float64) float64
}

// Merger joins the ordered successful clips into one artifact.
type Merger interface {
	Merge(ctx context.Context, orderedURLs []string) (media.MergeResult, error)
}

// Options tunes one Runner. Zero values fall back to sensible defaults.
type Options struct {
	PollInterval       time.Duration
	PollMaxAttempts    int
	AspectRatio        string
	SceneSeconds       float64
	TargetTotalSeconds float64
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.PollMaxAttempts <= 0 {
		o.PollMaxAttempts = 60
	}
	if o.AspectRatio == "" {
		o.AspectRatio = "16:9"
	}
	if o.SceneSeconds <= 0 {
		o.SceneSeconds = storyboard.DefaultSceneSeconds
	}
	if o.TargetTotalSeconds <= 0 {
		o.TargetTotalSeconds = 60
	}
}

// Runner drives one job through the full pipeline: storyboard, per-scene
// generation with keyframe continuation, duration accounting and the final
// merge. Scenes are generated strictly in order because scene i+1 is
// conditioned on scene i's completed provider job id.
type Runner struct {
	client provider.Client
	poller *provider.Poller
	prober Prober
	merger Merger
	sink   JobSink
	opts   Options
}

func NewRunner(client provider.Client, prober Prober, merger Merger, sink JobSink, opts Options) *Runner {
	opts.applyDefaults()
	return &Runner{
		client: client,
		poller: provider.NewPoller(client, opts.PollInterval, opts.PollMaxAttempts),
		prober: prober,
		merger: merger,
		sink:   sink,
		opts:   opts,
	}
}

// Run executes the pipeline for one job. It is used as the queue Executor.
// Per-scene failures are recorded and skipped; only validation, auth,
// zero-successes and broken-continuation failures end the job.
func (r *Runner) Run(ctx context.Context, job *jobs.VideoJob) error {
	if job == nil || job.Script == "" {
		return NewError(ErrValidation, "job has no script")
	}

	r.sink.UpdateProgress(job.ID, 5, "planning storyboard")

	board := storyboard.Build(job.Script)
	storyCtx := storyboard.ExtractContext(job.Script, board.Language)
	r.sink.SetStoryboard(job.ID, board.Scenes, storyCtx)
	r.sink.UpdateProgress(job.ID, 10, fmt.Sprintf("storyboard ready: %d scenes", len(board.Scenes)))

	clipSeconds := r.opts.SceneSeconds
	if max := r.client.MaxClipSeconds(); clipSeconds > max {
		clipSeconds = max
	}

	total := len(board.Scenes)
	var (
		lastSuccessRef string
		accumulated    float64
		succeeded      int
		orderedURLs    []string
	)

	for _, scene := range board.Scenes {
		if err := ctx.Err(); err != nil {
			return NewErrorWithCause(ErrCancelled, "generation aborted", err)
		}

		result, fatal := r.generateScene(ctx, job.ID, scene, storyCtx, lastSuccessRef, clipSeconds)
		r.sink.AppendSceneResult(job.ID, result)
		if fatal != nil {
			r.sink.SetErrorDetail(job.ID, fatal.Error())
			return fatal
		}

		attempted := scene.Index
		progress := 10 + 80*attempted/total
		if result.Error != "" {
			log.Warn("Job %s scene %d failed: %s", job.ID, scene.Index, result.Error)
			r.sink.UpdateProgress(job.ID, progress, fmt.Sprintf("scene %d/%d failed, continuing", scene.Index, total))
			continue
		}

		lastSuccessRef = result.ProviderJobID
		accumulated += result.ActualSeconds
		succeeded++
		orderedURLs = append(orderedURLs, result.VideoURL)
		r.sink.UpdateProgress(job.ID, progress, fmt.Sprintf("scene %d/%d generated (%.0fs total)", scene.Index, total, accumulated))

		if accumulated >= r.opts.TargetTotalSeconds {
			log.Info("Job %s reached %.1fs after %d scenes, stopping early", job.ID, accumulated, scene.Index)
			break
		}
	}

	if succeeded == 0 {
		return NewError(ErrNoScenesSucceeded, "no videos generated").
			WithContext("scenes_planned", total)
	}

	unique, dropped := media.DedupURLs(orderedURLs)
	if succeeded >= 2 && len(unique) == 1 {
		// Every continuation request came back with the same clip; the chain
		// never advanced and the "video" would be one clip repeated.
		return NewError(ErrContinuationBroken, "continuation not working: provider returned identical clips").
			WithContext("scenes_succeeded", succeeded)
	}
	if dropped > 0 {
		log.Warn("Job %s: %d duplicate clip URL(s) detected across scenes", job.ID, dropped)
	}

	r.sink.UpdateProgress(job.ID, 90, "merging clips")
	mergeRes, err := r.merger.Merge(ctx, orderedURLs)
	if err != nil {
		return NewErrorWithCause(ErrMerge, "failed to assemble final video", err)
	}
	if mergeRes.Degraded {
		log.Warn("Job %s merged in degraded mode, artifact is the first clip only", job.ID)
	}

	r.sink.SetOutput(job.ID, mergeRes.ArtifactRef)
	r.sink.UpdateProgress(job.ID, 95, fmt.Sprintf("video ready: %d scene(s), %.1fs", succeeded, accumulated))
	return nil
}

// generateScene runs submit → poll → probe for one scene. The returned
// SceneResult always carries the prompt; fatal is non-nil only for
// job-ending failures (auth rejection, cancellation).
func (r *Runner) generateScene(
	ctx context.Context,
	jobID string,
	scene jobs.Scene,
	storyCtx *jobs.StoryContext,
	continuationRef string,
	clipSeconds float64,
) (jobs.SceneResult, error) {
	prompt := BuildPrompt(scene, storyCtx, continuationRef != "")
	result := jobs.SceneResult{
		SceneIndex: scene.Index,
		Prompt:     prompt,
	}

	providerID, err := r.client.Submit(ctx, provider.SubmitRequest{
		Prompt:          prompt,
		ContinuationRef: continuationRef,
		Seconds:         clipSeconds,
		AspectRatio:     r.opts.AspectRatio,
	})
	if err != nil {
		result.Error = err.Error()
		if provider.IsAuthError(err) {
			return result, NewErrorWithCause(ErrProviderAuth, "video provider rejected credentials", err).
				WithContext("scene", scene.Index)
		}
		if ctx.Err() != nil {
			return result, NewErrorWithCause(ErrCancelled, "generation aborted", ctx.Err())
		}
		return result, nil
	}
	result.ProviderJobID = providerID

	poll, err := r.poller.AwaitTerminal(ctx, providerID, func(attempt int, state provider.State) {
		step := fmt.Sprintf("scene %d: %s (poll %d/%d)", scene.Index, state, attempt, r.opts.PollMaxAttempts)
		r.sink.UpdateProgress(jobID, 0, step)
	})
	if err != nil {
		return result, NewErrorWithCause(ErrCancelled, "generation aborted", err)
	}

	switch poll.Status {
	case provider.TerminalSucceeded:
		result.VideoURL = poll.VideoURL
		result.ActualSeconds = r.prober.ProbeDuration(ctx, poll.VideoURL, scene.TargetSeconds)
	case provider.TerminalTimeout:
		result.Error = fmt.Sprintf("timed out waiting for generation %s", providerID)
	default:
		result.Error = poll.FailureReason
	}
	return result, nil
}
