package retry

import (
	"time"

	"github.com/UnknownOlympus/atlas-batch/internal/geocoding"
	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxRetries is the number of quota rejections after which an address is given up.
const DefaultMaxRetries = 20

// Decision tells the scheduler what to do with an address after a provider answer.
type Decision int

const (
	// DecisionDone means the address resolved and its retry state was discarded.
	DecisionDone Decision = iota
	// DecisionRetry means the address should be requested again after the returned delay.
	DecisionRetry
	// DecisionExhausted means the address hit the retry ceiling and must be marked failed.
	DecisionExhausted
	// DecisionFail means the provider rejected the address permanently.
	DecisionFail
)

func (d Decision) String() string {
	switch d {
	case DecisionDone:
		return "done"
	case DecisionRetry:
		return "retry"
	case DecisionExhausted:
		return "exhausted"
	case DecisionFail:
		return "fail"
	default:
		return "unknown"
	}
}

type entry struct {
	rejections int
	backOff    backoff.BackOff
}

// Tracker counts quota rejections per address. It is not safe for concurrent use,
// the batch controller only touches it from its own goroutine.
type Tracker struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	entries    map[string]*entry
}

// New returns a tracker giving up after maxRetries rejections (DefaultMaxRetries when not positive).
// Delays grow exponentially from baseDelay up to maxDelay, independently for every address.
func New(maxRetries int, baseDelay, maxDelay time.Duration) *Tracker {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	return &Tracker{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		entries:    make(map[string]*entry),
	}
}

// Observe records the provider status for address and decides what happens next.
// The delay is only meaningful for DecisionRetry.
func (t *Tracker) Observe(address string, status geocoding.Status) (Decision, time.Duration) {
	switch {
	case status == geocoding.StatusOK:
		t.Forget(address)
		return DecisionDone, 0
	case !status.Retryable():
		t.Forget(address)
		return DecisionFail, 0
	}

	state, ok := t.entries[address]
	if !ok {
		state = &entry{backOff: t.newBackOff()}
		t.entries[address] = state
	}

	state.rejections++
	if state.rejections >= t.maxRetries {
		t.Forget(address)
		return DecisionExhausted, 0
	}

	return DecisionRetry, state.backOff.NextBackOff()
}

// Attempts returns the number of quota rejections recorded for address.
func (t *Tracker) Attempts(address string) int {
	if state, ok := t.entries[address]; ok {
		return state.rejections
	}

	return 0
}

// Forget drops the state of address.
func (t *Tracker) Forget(address string) {
	delete(t.entries, address)
}

// Len returns the number of addresses with retry state.
func (t *Tracker) Len() int {
	return len(t.entries)
}

func (t *Tracker) newBackOff() backoff.BackOff {
	if t.baseDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}

	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = t.baseDelay
	expBackOff.MaxInterval = t.maxDelay
	expBackOff.MaxElapsedTime = 0
	expBackOff.Reset()

	return expBackOff
}
