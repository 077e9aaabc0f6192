package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/jobs"
)

func TestSQLiteStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "storyreel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	completed := time.Now().UTC().Truncate(time.Millisecond)
	job := &jobs.VideoJob{
		ID:          "job-1",
		Source:      "api",
		DedupeKey:   "script-sha",
		Script:      "Mia finds a paper boat by the river.",
		Status:      jobs.StatusCompleted,
		Progress:    100,
		CurrentStep: "done",
		Storyboard: []jobs.Scene{
			{Index: 1, Description: "Mia finds a paper boat by the river.", TargetSeconds: 9},
		},
		Context: &jobs.StoryContext{
			Characters:  []jobs.Character{{Name: "Mia"}},
			Setting:     "riverside",
			VisualStyle: "soft colorful 3D animation",
			Theme:       "discovery",
			Language:    "en",
		},
		Scenes: []jobs.SceneResult{
			{SceneIndex: 1, Prompt: "Scene 1: ...", ProviderJobID: "gen-1", VideoURL: "https://cdn/clip-1.mp4", ActualSeconds: 9.2},
		},
		VideoURL:    "/data/output/story_abc.mp4",
		CreatedAt:   completed.Add(-time.Minute),
		UpdatedAt:   completed,
		CompletedAt: &completed,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.Len(t, got.Storyboard, 1)
	assert.Equal(t, job.Storyboard[0].Description, got.Storyboard[0].Description)
	require.NotNil(t, got.Context)
	assert.Equal(t, "Mia", got.Context.Characters[0].Name)
	require.Len(t, got.Scenes, 1)
	assert.Equal(t, "gen-1", got.Scenes[0].ProviderJobID)
	assert.InDelta(t, 9.2, got.Scenes[0].ActualSeconds, 0.001)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completed))
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "storyreel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	job := &jobs.VideoJob{
		ID:        "job-1",
		Script:    "A short story.",
		Status:    jobs.StatusQueued,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	job.Status = jobs.StatusFailed
	job.Error = "no videos generated"
	job.Progress = 38
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, jobs.StatusFailed, all[0].Status)
	assert.Equal(t, "no videos generated", all[0].Error)
	assert.Equal(t, 38, all[0].Progress)
	assert.Nil(t, all[0].CompletedAt)
	assert.Nil(t, all[0].Context)
	assert.Empty(t, all[0].Scenes)
}

func TestSQLiteStore_DeleteJob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "storyreel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, id := range []string{"job-1", "job-2"} {
		require.NoError(t, store.UpsertJob(ctx, &jobs.VideoJob{
			ID:        id,
			Script:    "A short story.",
			Status:    jobs.StatusQueued,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}))
	}

	require.NoError(t, store.DeleteJob(ctx, "job-1"))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "job-2", all[0].ID)
}

func TestSQLiteStore_ReopenKeepsSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "storyreel.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertJob(context.Background(), &jobs.VideoJob{
		ID:        "job-1",
		Script:    "A short story.",
		Status:    jobs.StatusProcessing,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.Close())

	// Migrations are recorded per version and must not reapply.
	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	all, err := reopened.LoadJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, jobs.StatusProcessing, all[0].Status)
}
