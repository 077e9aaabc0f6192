package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLuma(t *testing.T, handler http.HandlerFunc) *LumaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewLumaClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestLumaClient_SubmitSendsContinuationKeyframe(t *testing.T) {
	var captured lumaSubmitRequest
	client := newTestLuma(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generations", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(lumaGeneration{ID: "gen-42", State: "queued"})
	})

	id, err := client.Submit(context.Background(), SubmitRequest{
		Prompt:          "a fox runs through the snow",
		ContinuationRef: "gen-41",
		Seconds:         9,
		AspectRatio:     "16:9",
	})

	require.NoError(t, err)
	assert.Equal(t, "gen-42", id)
	assert.Equal(t, "9s", captured.Duration)
	require.Contains(t, captured.Keyframes, "frame0")
	assert.Equal(t, "generation", captured.Keyframes["frame0"].Type)
	assert.Equal(t, "gen-41", captured.Keyframes["frame0"].ID)
}

func TestLumaClient_SubmitWithoutContinuationOmitsKeyframes(t *testing.T) {
	var captured lumaSubmitRequest
	client := newTestLuma(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(lumaGeneration{ID: "gen-1", State: "queued"})
	})

	_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "opening shot", Seconds: 9})

	require.NoError(t, err)
	assert.Empty(t, captured.Keyframes)
}

func TestLumaClient_AuthFailureIsClassified(t *testing.T) {
	client := newTestLuma(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "anything"})

	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
}

func TestLumaClient_ServerErrorIsNotAuth(t *testing.T) {
	client := newTestLuma(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "anything"})

	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}

func TestLumaClient_GetGenerationMapsStates(t *testing.T) {
	client := newTestLuma(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generations/gen-7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(lumaGeneration{
			ID:    "gen-7",
			State: "dreaming",
		})
	})

	gen, err := client.GetGeneration(context.Background(), "gen-7")

	require.NoError(t, err)
	assert.Equal(t, StateDreaming, gen.State)
	assert.Empty(t, gen.VideoURL)
}

func TestNew_SelectsBackend(t *testing.T) {
	luma, err := New(Config{Backend: "luma", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "luma", luma.Name())

	runway, err := New(Config{Backend: "runway", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "runway", runway.Name())

	_, err = New(Config{Backend: "sora", APIKey: "k"})
	require.Error(t, err)
}
