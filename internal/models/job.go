package models

import (
	"math"
	"time"
)

// JobStatus represents the extraction job lifecycle.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusExtracting  JobStatus = "extracting"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether no further transitions are accepted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Clip is a selected time range of the source media, in seconds.
type Clip struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	Text  string  `json:"text"`
}

// Duration returns End - Start.
func (c Clip) Duration() float64 { return c.End - c.Start }

// Valid reports whether the clip has finite bounds and a positive duration.
func (c Clip) Valid() bool {
	if math.IsNaN(c.Start) || math.IsInf(c.Start, 0) || math.IsNaN(c.End) || math.IsInf(c.End, 0) {
		return false
	}
	return c.End > c.Start
}

// Job is one URL + prompt extraction request and everything the pipeline produced for it.
type Job struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Prompt          string    `json:"prompt"`
	Status          JobStatus `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	InputMediaPath  string    `json:"input_media_path,omitempty"`
	OutputMediaPath string    `json:"output_media_path,omitempty"`
	OutputMediaURL  string    `json:"output_url,omitempty"`
	Clips           []Clip    `json:"clips"`
}

// JobView is the polling representation of a job exposed at the boundary.
type JobView struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Clips        []Clip    `json:"clips"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	OutputURL    *string   `json:"output_url,omitempty"`
}

// View renders the job for polling clients. Clips are copied.
func (j Job) View() JobView {
	v := JobView{
		ID:        j.ID,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Clips:     make([]Clip, len(j.Clips)),
	}
	copy(v.Clips, j.Clips)
	if j.ErrorMessage != "" {
		msg := j.ErrorMessage
		v.ErrorMessage = &msg
	}
	if j.OutputMediaURL != "" {
		u := j.OutputMediaURL
		v.OutputURL = &u
	}
	return v
}
