package jobs

import "time"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further status transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Scene is one planned unit of the storyboard. Scenes are immutable once the
// storyboard is built; Index is 1-based and defines generation order.
type Scene struct {
	Index         int     `json:"index"`
	Description   string  `json:"description"`
	TargetSeconds float64 `json:"target_seconds"`
}

// SceneResult records the outcome of generating one Scene. Either VideoURL
// or Error is populated, never both.
type SceneResult struct {
	SceneIndex    int     `json:"scene_index"`
	Prompt        string  `json:"prompt"`
	ProviderJobID string  `json:"provider_job_id,omitempty"`
	VideoURL      string  `json:"video_url,omitempty"`
	ActualSeconds float64 `json:"actual_seconds,omitempty"`
	Error         string  `json:"error,omitempty"`
}

type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StoryContext is derived once per script and injected into every clip
// prompt to keep characters, setting and style consistent across clips.
type StoryContext struct {
	Characters  []Character `json:"characters"`
	Setting     string      `json:"setting"`
	VisualStyle string      `json:"visual_style"`
	Theme       string      `json:"theme"`
	Language    string      `json:"language,omitempty"`
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Script    string
}

// VideoJob is the full lifecycle record of one script-to-video generation.
type VideoJob struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	DedupeKey   string        `json:"dedupe_key"`
	Script      string        `json:"script"`
	Status      Status        `json:"status"`
	Progress    int           `json:"progress"`
	CurrentStep string        `json:"current_step,omitempty"`
	Storyboard  []Scene       `json:"storyboard,omitempty"`
	Context     *StoryContext `json:"context,omitempty"`
	Scenes      []SceneResult `json:"scenes,omitempty"`
	VideoURL    string        `json:"video_url,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
