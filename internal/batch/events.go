package batch

import "github.com/UnknownOlympus/atlas-batch/internal/models"

// State is the lifecycle state of the controller.
type State int32

const (
	// StateIdle means no run is active.
	StateIdle State = iota
	// StateRunning means a submission is being merged into the current run.
	StateRunning
	// StateDraining means every address is scheduled and the run waits for outstanding requests.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Progress is emitted every time an address of the run completes.
type Progress struct {
	Total     int `json:"total"`     // distinct addresses in the run
	Completed int `json:"completed"` // resolved, served from cache or failed
	Errored   int `json:"errored"`   // failed permanently or by transport error
}

// Results maps every address resolved during a run to its coordinates.
type Results map[string]models.Coordinates

// Report is emitted once per run when all of its work has drained.
// Handlers share the same maps and must treat them as read-only.
type Report struct {
	Results  Results           `json:"results"`
	Failures map[string]string `json:"failures,omitempty"` // address to failure reason
}

type run struct {
	total     int
	completed int
	errored   int
	seen      map[string]struct{}
	results   Results
	failures  map[string]string
	waiters   []chan<- Report
}

func newRun() *run {
	return &run{
		seen:     make(map[string]struct{}),
		results:  make(Results),
		failures: make(map[string]string),
	}
}

func (r *run) progress() Progress {
	return Progress{Total: r.total, Completed: r.completed, Errored: r.errored}
}
