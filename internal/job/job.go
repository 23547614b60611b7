package job

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Job status values reported by the backend. The client never invents a
// transition on its own; it only relays what the server said.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Result is the payload attached to a completed job.
type Result struct {
	VideoURL string `json:"video_url,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Parameters captures the generation request at submission time. They are
// immutable for the life of the job and drive the download filename.
type Parameters struct {
	Prompt     string
	Seconds    int
	Resolution string
	Width      int
	Height     int
}

// Job is a single video-generation request and its evolving server-reported
// outcome. Before the backend assigns an ID the record is provisional and
// exists only on the client.
type Job struct {
	ID               string
	Status           string
	Progress         int
	Result           *Result
	Error            string
	ProviderStatus   string
	ProviderResponse json.RawMessage
	Note             string
	Params           Parameters
	CreatedAt        time.Time
}

// New builds a provisional job record for the given parameters.
func New(params Parameters) *Job {
	return &Job{
		Status:    StatusPending,
		Progress:  0,
		Params:    params,
		CreatedAt: time.Now(),
	}
}

// Terminal reports whether the job has reached a final status. Once terminal,
// polling stops and the record is frozen.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Snapshot returns a copy safe to hand to observers while the poll loop keeps
// mutating the original.
func (j *Job) Snapshot() Job {
	out := *j
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	if j.ProviderResponse != nil {
		out.ProviderResponse = append(json.RawMessage(nil), j.ProviderResponse...)
	}
	return out
}

// StatusUpdate is the wire shape of a status read. All fields are optional;
// pointers distinguish an absent field from a zero value so the merge can be
// additive.
type StatusUpdate struct {
	Status         *string         `json:"status"`
	Progress       *int            `json:"progress"`
	Result         *Result         `json:"result"`
	Error          *string         `json:"error"`
	OpenAIStatus   *string         `json:"openai_status"`
	OpenAIResponse json.RawMessage `json:"openai_response"`
}

// Apply merges a status update into the job field-wise. A field absent from
// the update never erases a previously known value.
func (j *Job) Apply(u StatusUpdate) {
	if u.Status != nil && *u.Status != "" {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Result != nil {
		r := *u.Result
		j.Result = &r
	}
	if u.Error != nil && *u.Error != "" {
		j.Error = *u.Error
	}
	if u.OpenAIStatus != nil && *u.OpenAIStatus != "" {
		j.ProviderStatus = *u.OpenAIStatus
	}
	if len(u.OpenAIResponse) > 0 {
		j.ProviderResponse = append(json.RawMessage(nil), u.OpenAIResponse...)
	}
}

// ParseResolution splits a WIDTHxHEIGHT string into its numeric parts.
func ParseResolution(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("job: invalid resolution %q", s)
	}
	width, err = strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("job: invalid resolution width %q", s)
	}
	height, err = strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("job: invalid resolution height %q", s)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("job: invalid resolution %q", s)
	}
	return width, height, nil
}
