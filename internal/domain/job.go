package domain

import (
	"encoding/json"
	"time"
)

// Provider enumerates supported inference backends.
type Provider string

const (
	ProviderReplicate Provider = "replicate"
	ProviderFal       Provider = "fal"
	ProviderLuma      Provider = "luma"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusStarting   JobStatus = "starting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// GenerationJob tracks one paid generation request from submission to a
// terminal state. CostInCredits is captured at submission time and is the
// exact refund amount should the provider fail.
type GenerationJob struct {
	ID            string
	UserID        string
	ProviderJobID string
	Provider      Provider
	Status        JobStatus
	Prompt        string
	InputParams   json.RawMessage
	CostInCredits int
	Progress      int
	ResultURL     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
