// Package providers abstracts the third-party inference backends behind a
// single submit/poll contract. Each adapter maps its provider's native
// status vocabulary onto one normalized state set so the orchestrator never
// branches on raw provider strings.
package providers

import "context"

// State is the normalized job state across all providers.
type State string

const (
	StateStarting   State = "starting"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateCanceled   State = "canceled"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

// Status is the normalized poll result. ResultURL points at the provider's
// temporary artifact: a video for the generation path, an image for the
// refinement path. Callers disambiguate by which field their flow expects.
type Status struct {
	State         State
	Progress      int
	ResultURL     string
	FailureReason string
}

// Payload is the normalized submit input; adapters translate it to their
// wire format and ignore fields that do not apply to their models.
type Payload struct {
	Model       string
	Prompt      string
	ImageURL    string
	EndImageURL string
	AspectRatio string
	Duration    string
	Seed        int
	Strength    float64
	Extra       map[string]any
}

// Adapter is the capability set every provider implements.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, payload Payload) (string, error)
	Poll(ctx context.Context, providerJobID string) (*Status, error)
}

// Advisory progress values for non-terminal substates: queued jobs sit near
// the start of the bar, running jobs near the middle.
const (
	ProgressQueued  = 10
	ProgressRunning = 50
	ProgressDone    = 100
)
