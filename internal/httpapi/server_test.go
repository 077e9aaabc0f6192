package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/jobs"
)

const testScript = "Mia finds a paper boat by the river and follows it downstream " +
	"past the willow trees until a sudden gust carries it onto a rock."

func newTestServer(t *testing.T) (*Server, *jobs.Queue) {
	t.Helper()
	queue := jobs.NewQueue(1, nil)
	t.Cleanup(queue.Stop)
	return NewServer(queue), queue
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGenerateCreatesJob(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/generate", map[string]string{
		"script": testScript,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	require.NotNil(t, resp.Job)
	assert.NotEmpty(t, resp.Job.ID)
	assert.Equal(t, jobs.StatusQueued, resp.Job.Status)
	assert.Equal(t, "api", resp.Job.Source)
}

func TestGenerateDeduplicatesSameScript(t *testing.T) {
	srv, _ := newTestServer(t)

	first := doJSON(t, srv.Handler(), http.MethodPost, "/api/generate", map[string]string{
		"script": testScript,
	})
	require.Equal(t, http.StatusCreated, first.Code)
	var firstResp generateResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))

	second := doJSON(t, srv.Handler(), http.MethodPost, "/api/generate", map[string]string{
		"script": testScript,
	})
	require.Equal(t, http.StatusOK, second.Code)
	var secondResp generateResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))

	assert.False(t, secondResp.Created)
	assert.Equal(t, firstResp.Job.ID, secondResp.Job.ID)
}

func TestGenerateRejectsShortScript(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/generate", map[string]string{
		"script": "Too short.",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 60 characters")
}

func TestGenerateRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/nope", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobProjectsSceneResults(t *testing.T) {
	srv, queue := newTestServer(t)

	job, created := queue.Enqueue(jobs.EnqueueRequest{DedupeKey: "k", Script: testScript})
	require.True(t, created)

	queue.SetStoryboard(job.ID, []jobs.Scene{
		{Index: 1, Description: "first", TargetSeconds: 9},
		{Index: 2, Description: "second", TargetSeconds: 9},
	}, &jobs.StoryContext{Setting: "riverside"})
	queue.AppendSceneResult(job.ID, jobs.SceneResult{
		SceneIndex:    1,
		Prompt:        "internal prompt",
		ProviderJobID: "gen-1",
		VideoURL:      "https://cdn/clip-1.mp4",
		ActualSeconds: 9.2,
	})
	queue.AppendSceneResult(job.ID, jobs.SceneResult{
		SceneIndex: 2,
		Prompt:     "internal prompt",
		Error:      "generation rejected",
	})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ScenesPlanned)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://cdn/clip-1.mp4", resp.Results[0].VideoURL)
	assert.Equal(t, "generation rejected", resp.Results[1].Error)

	// Prompts and provider job ids never leave the service.
	assert.NotContains(t, rec.Body.String(), "internal prompt")
	assert.NotContains(t, rec.Body.String(), "gen-1")
}

func TestListJobs(t *testing.T) {
	srv, queue := newTestServer(t)

	for i := 0; i < 3; i++ {
		_, created := queue.Enqueue(jobs.EnqueueRequest{
			DedupeKey: fmt.Sprintf("k-%d", i),
			Script:    testScript,
		})
		require.True(t, created)
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	for i := 1; i < len(resp); i++ {
		assert.False(t, resp[i].CreatedAt.After(resp[i-1].CreatedAt), "newest first")
	}
}

func TestCancelJob(t *testing.T) {
	srv, queue := newTestServer(t)

	job, created := queue.Enqueue(jobs.EnqueueRequest{DedupeKey: "k", Script: testScript})
	require.True(t, created)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, jobs.StatusCancelled, resp.Status)

	// A second cancel hits a job that is already terminal.
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs/nope/cancel", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
