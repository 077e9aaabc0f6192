package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/storyreel/storyreel/internal/jobs"
)

// minScriptRunes rejects scripts too short to storyboard into a story.
const minScriptRunes = 60

type generateRequest struct {
	Source    string `json:"source"`
	DedupeKey string `json:"dedupe_key"`
	Script    string `json:"script"`
}

type generateResponse struct {
	Created bool         `json:"created"`
	Job     *jobResponse `json:"job"`
}

type sceneResultResponse struct {
	SceneIndex    int     `json:"scene_index"`
	VideoURL      string  `json:"video_url,omitempty"`
	ActualSeconds float64 `json:"actual_seconds,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// jobResponse is the external projection of a job. Prompts and provider job
// ids stay internal.
type jobResponse struct {
	ID            string                `json:"id"`
	Source        string                `json:"source,omitempty"`
	Status        jobs.Status           `json:"status"`
	Progress      int                   `json:"progress"`
	CurrentStep   string                `json:"current_step,omitempty"`
	ScenesPlanned int                   `json:"scenes_planned"`
	Results       []sceneResultResponse `json:"results,omitempty"`
	VideoURL      string                `json:"video_url,omitempty"`
	Error         string                `json:"error,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

func toJobResponse(job *jobs.VideoJob) *jobResponse {
	if job == nil {
		return nil
	}
	ret := &jobResponse{
		ID:            job.ID,
		Source:        job.Source,
		Status:        job.Status,
		Progress:      job.Progress,
		CurrentStep:   job.CurrentStep,
		ScenesPlanned: len(job.Storyboard),
		VideoURL:      job.VideoURL,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		CompletedAt:   job.CompletedAt,
	}
	for _, res := range job.Scenes {
		ret.Results = append(ret.Results, sceneResultResponse{
			SceneIndex:    res.SceneIndex,
			VideoURL:      res.VideoURL,
			ActualSeconds: res.ActualSeconds,
			Error:         res.Error,
		})
	}
	return ret
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Script = strings.TrimSpace(req.Script)
	if utf8.RuneCountInString(req.Script) < minScriptRunes {
		writeError(w, http.StatusBadRequest, "script must be at least 60 characters")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}
	if req.DedupeKey == "" {
		sum := sha256.Sum256([]byte(req.Script))
		req.DedupeKey = hex.EncodeToString(sum[:])
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Script:    req.Script,
	})
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, generateResponse{
		Created: created,
		Job:     toJobResponse(job),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.queue.List()
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	ret := make([]*jobResponse, 0, len(list))
	for _, job := range list {
		ret = append(ret, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, exists := s.queue.Get(id); !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, ok := s.queue.Cancel(id)
	if !ok {
		writeError(w, http.StatusConflict, "job already finished")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
