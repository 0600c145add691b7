package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/atlas-batch/internal/cache"
	"github.com/UnknownOlympus/atlas-batch/internal/geocoding"
	"github.com/UnknownOlympus/atlas-batch/internal/metrics"
	"github.com/UnknownOlympus/atlas-batch/internal/models"
	"github.com/UnknownOlympus/atlas-batch/internal/ratelimit"
	"github.com/UnknownOlympus/atlas-batch/internal/retry"
)

// InFlightRequest is the single outstanding provider call of an address.
// Attempt is 0 for the first call and grows with every quota retry.
type InFlightRequest struct {
	Address string
	Attempt int
}

type completion struct {
	address string
	attempt int
	result  geocoding.Result
	err     error
}

type outcomeKind int

const (
	outcomeRetrying outcomeKind = iota
	outcomeResolved
	outcomeFailed
	outcomeTransportError
	outcomeIgnored
)

type outcome struct {
	kind     outcomeKind
	address  string
	location models.Coordinates
	reason   string
	err      error // surfaced to OnError handlers when set
}

// scheduler turns addresses into rate limited provider calls and commits their answers.
// All fields are owned by the controller goroutine; provider calls run on limiter
// goroutines and only report back through completions.
type scheduler struct {
	log          *slog.Logger
	provider     geocoding.Provider
	providerName string
	cache        *cache.AddressCache
	limiter      *ratelimit.Limiter
	retries      *retry.Tracker
	metrics      *metrics.Metrics
	completions  chan<- completion

	inFlight    map[string]*InFlightRequest
	outstanding int
}

// schedule hands address to the limiter unless a request for it is already in flight.
func (s *scheduler) schedule(address string) bool {
	if _, ok := s.inFlight[address]; ok {
		return false
	}

	req := &InFlightRequest{Address: address}
	s.inFlight[address] = req
	s.outstanding++
	s.metrics.InFlightRequests.Inc()
	s.limiter.Admit(s.call(*req))

	return true
}

func (s *scheduler) call(req InFlightRequest) ratelimit.Task {
	return func(ctx context.Context) {
		startTime := time.Now()
		result, err := s.provider.Geocode(ctx, req.Address)
		duration := time.Since(startTime).Seconds()
		s.metrics.RequestSeconds.WithLabelValues(s.providerName).Observe(duration)

		select {
		case s.completions <- completion{address: req.Address, attempt: req.Attempt, result: result, err: err}:
		case <-ctx.Done():
		}
	}
}

// complete accounts for one finished provider call and decides the fate of its address.
func (s *scheduler) complete(ctx context.Context, done completion) outcome {
	req, ok := s.inFlight[done.address]
	if !ok {
		s.log.WarnContext(ctx, "Completion for an address that is not in flight", "address", done.address)
		return outcome{kind: outcomeIgnored, address: done.address}
	}
	s.outstanding--

	if done.err != nil {
		s.release(done.address)
		s.retries.Forget(done.address)
		s.metrics.APIErrors.Inc()
		s.log.ErrorContext(ctx, "Failed to geocode", "address", done.address, "attempt", done.attempt, "error", done.err)

		return outcome{
			kind:    outcomeTransportError,
			address: done.address,
			err:     fmt.Errorf("%w: %w", ErrProviderTransport, done.err),
		}
	}

	status := done.result.Status
	decision, delay := s.retries.Observe(done.address, status)

	switch decision {
	case retry.DecisionRetry:
		s.metrics.QuotaRejections.Inc()
		req.Attempt++
		s.outstanding++
		s.log.DebugContext(ctx, "Provider quota exceeded, retrying", "address", done.address, "attempt", req.Attempt, "delay", delay)
		s.limiter.AdmitAfter(delay, s.call(*req))

		return outcome{kind: outcomeRetrying, address: done.address}
	case retry.DecisionExhausted:
		s.metrics.QuotaRejections.Inc()
		s.log.WarnContext(ctx, "Giving up on address after repeated quota rejections",
			"address", done.address, "attempts", req.Attempt+1)

		return s.fail(done.address, ReasonRetryExhausted)
	case retry.DecisionFail:
		s.log.InfoContext(ctx, "Provider rejected address", "address", done.address, "status", status)

		return s.fail(done.address, string(status))
	case retry.DecisionDone:
	}

	s.release(done.address)
	out := outcome{kind: outcomeResolved, address: done.address, location: done.result.Location}
	if err := s.cache.RecordResolved(done.address, done.result.Location); err != nil {
		out.err = err
	}

	return out
}

func (s *scheduler) fail(address, reason string) outcome {
	s.release(address)
	out := outcome{kind: outcomeFailed, address: address, reason: reason}
	if err := s.cache.RecordFailed(address, reason); err != nil {
		out.err = err
	}

	return out
}

func (s *scheduler) release(address string) {
	delete(s.inFlight, address)
	s.metrics.InFlightRequests.Dec()
}
