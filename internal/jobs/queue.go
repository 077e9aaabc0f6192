package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storyreel/storyreel/pkg/log"
)

type Executor func(ctx context.Context, job *VideoJob) error

// Queue is an in-process job queue with a fixed worker pool. A single job is
// only ever processed by one worker; the queue is the sole mutator of its
// jobs, readers get clone snapshots.
type Queue struct {
	workerCount int
	maxJobs     int
	store       Store

	mu         sync.RWMutex
	jobs       map[string]*VideoJob
	dedupe     map[string]string
	cancels    map[string]context.CancelFunc
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount: workerCount,
		maxJobs:     1000,
		store:       store,
		jobs:        make(map[string]*VideoJob),
		dedupe:      make(map[string]string),
		cancels:     make(map[string]context.CancelFunc),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

// Enqueue registers a new generation job. When a job with the same dedupe
// key is still active, the existing job is returned and created is false.
func (q *Queue) Enqueue(req EnqueueRequest) (*VideoJob, bool) {
	now := time.Now()

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.jobs[id]; exists {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	job := &VideoJob{
		ID:        uuid.NewString(),
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Script:    req.Script,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.jobs[job.ID] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = job.ID
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.enqueuePendingID(job.ID)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*VideoJob, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (q *Queue) List() []*VideoJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*VideoJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]*VideoJob, 0)
	for _, job := range q.jobs {
		if job.Status == StatusQueued {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	q.mu.Unlock()

	for _, job := range pending {
		q.enqueuePendingID(job.ID)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.mu.Lock()
		for _, cancel := range q.cancels {
			cancel()
		}
		q.mu.Unlock()
		q.wg.Wait()
	})
}

// Cancel aborts a queued or processing job. Completed scene results already
// recorded stay readable; a cancelled job cannot be resumed.
func (q *Queue) Cancel(id string) (*VideoJob, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.IsTerminal() {
		q.mu.Unlock()
		return cloneJob(job), false
	}
	job.Status = StatusCancelled
	job.CurrentStep = "cancelled"
	job.UpdatedAt = time.Now()
	q.releaseDedupeLocked(job)
	cancel := q.cancels[id]
	snapshot := cloneJob(job)
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			job, ctx, ok := q.markProcessing(id)
			if !ok {
				continue
			}

			err := exec(ctx, job)
			q.finish(id, err)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() { q.pendingIDs <- id }()
	}
}

func (q *Queue) markProcessing(id string) (*VideoJob, context.Context, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusQueued {
		q.mu.Unlock()
		return nil, nil, false
	}
	job.Status = StatusProcessing
	job.CurrentStep = "starting"
	job.UpdatedAt = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	q.cancels[id] = cancel
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, ctx, true
}

func (q *Queue) finish(id string, execErr error) {
	q.mu.Lock()
	if cancel, ok := q.cancels[id]; ok {
		cancel()
		delete(q.cancels, id)
	}
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	// A cancel may have landed while the executor was winding down; the
	// cancelled status wins.
	if job.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	if execErr != nil {
		job.Status = StatusFailed
		job.Error = execErr.Error()
	} else {
		job.Status = StatusCompleted
		job.Progress = 100
		job.Error = ""
		job.CompletedAt = &now
	}
	job.UpdatedAt = now
	q.releaseDedupeLocked(job)
	pruned := q.pruneTerminalJobsLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

// UpdateProgress sets the progress and step of an active job. Progress is
// monotonic: a value lower than the current one is ignored.
func (q *Queue) UpdateProgress(id string, progress int, step string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if step != "" {
		job.CurrentStep = step
	}
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// SetStoryboard records the planned scenes and shared story context.
func (q *Queue) SetStoryboard(id string, storyboard []Scene, storyCtx *StoryContext) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	job.Storyboard = append([]Scene(nil), storyboard...)
	if storyCtx != nil {
		cp := *storyCtx
		cp.Characters = append([]Character(nil), storyCtx.Characters...)
		job.Context = &cp
	}
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// AppendSceneResult records the terminal outcome of one scene.
func (q *Queue) AppendSceneResult(id string, result SceneResult) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	job.Scenes = append(job.Scenes, result)
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// SetOutput records the merged artifact reference.
func (q *Queue) SetOutput(id string, videoURL string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	job.VideoURL = videoURL
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// SetErrorDetail attaches structured failure detail before the executor
// returns its summarized error.
func (q *Queue) SetErrorDetail(id string, detail string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.ErrorDetail = detail
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// PruneTerminalBefore removes terminal jobs last updated before the cutoff.
// Returns the number of jobs removed.
func (q *Queue) PruneTerminalBefore(cutoff time.Time) int {
	q.mu.Lock()
	pruned := make([]string, 0)
	for id, job := range q.jobs {
		if job == nil || !job.Status.IsTerminal() {
			continue
		}
		if job.UpdatedAt.Before(cutoff) {
			q.releaseDedupeLocked(job)
			delete(q.jobs, id)
			pruned = append(pruned, id)
		}
	}
	q.mu.Unlock()

	q.deleteJobsFromStore(pruned)
	return len(pruned)
}

func (q *Queue) releaseDedupeLocked(job *VideoJob) {
	if job == nil || job.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[job.DedupeKey]; ok && id == job.ID {
		delete(q.dedupe, job.DedupeKey)
	}
}

func (q *Queue) pruneTerminalJobsLocked() []string {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.jobs))
	for id, job := range q.jobs {
		if job == nil || !job.Status.IsTerminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.jobs) - q.maxJobs
	if toRemove <= 0 {
		return nil
	}
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		job := q.jobs[id]
		if job != nil {
			q.releaseDedupeLocked(job)
		}
		delete(q.jobs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*VideoJob, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		job := cloneJob(raw)
		// A job that was mid-generation when the process died cannot be
		// resumed: the continuation chain is lost. It is failed, not retried.
		if job.Status == StatusProcessing {
			job.Status = StatusFailed
			job.Error = "generation interrupted by service restart"
			job.CurrentStep = "interrupted"
			job.UpdatedAt = now
			toPersist = append(toPersist, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status == StatusQueued && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
	}
	q.mu.Unlock()

	for _, job := range toPersist {
		q.persistJob(job)
	}
}

func (q *Queue) persistJob(job *VideoJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *VideoJob) *VideoJob {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Storyboard = append([]Scene(nil), job.Storyboard...)
	tmp.Scenes = append([]SceneResult(nil), job.Scenes...)
	if job.Context != nil {
		ctx := *job.Context
		ctx.Characters = append([]Character(nil), job.Context.Characters...)
		tmp.Context = &ctx
	}
	if job.CompletedAt != nil {
		ts := *job.CompletedAt
		tmp.CompletedAt = &ts
	}
	return &tmp
}
