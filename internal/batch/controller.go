package batch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/atlas-batch/internal/cache"
	"github.com/UnknownOlympus/atlas-batch/internal/geocoding"
	"github.com/UnknownOlympus/atlas-batch/internal/metrics"
	"github.com/UnknownOlympus/atlas-batch/internal/models"
	"github.com/UnknownOlympus/atlas-batch/internal/ratelimit"
	"github.com/UnknownOlympus/atlas-batch/internal/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// Options configures a Controller.
type Options struct {
	CacheFile         string        // Path of the append-only cache file, required
	Fs                afero.Fs      // Filesystem of the cache file, the OS filesystem when nil
	RequestsPerSecond float64       // Ceiling of provider call starts per second, unlimited when not positive
	MaxRetries        int           // Quota rejections before an address is given up
	RetryBaseDelay    time.Duration // First delay before a quota retry
	RetryMaxDelay     time.Duration // Upper bound of the retry delay
	ProviderName      string        // Provider label for metrics
}

// DefaultOptions returns options for an anonymous Google client writing to cacheFile.
func DefaultOptions(cacheFile string) Options {
	return Options{
		CacheFile:         cacheFile,
		RequestsPerSecond: geocoding.AnonymousRequestsPerSecond,
		MaxRetries:        retry.DefaultMaxRetries,
		RetryBaseDelay:    time.Second,
		RetryMaxDelay:     30 * time.Second,
		ProviderName:      "google",
	}
}

type submission struct {
	addresses []string
	reply     chan<- Report
}

// Controller resolves batches of addresses. A single goroutine (Run) owns all run state:
// submissions and provider completions are serialized through channels, and every
// handler is invoked on that goroutine, so handlers never run concurrently.
// Handlers must not call Submit or Resolve synchronously.
type Controller struct {
	log       *slog.Logger
	cache     *cache.AddressCache
	limiter   *ratelimit.Limiter
	scheduler *scheduler
	metrics   *metrics.Metrics

	submissions chan submission
	completions chan completion

	handlersMu       sync.RWMutex
	progressHandlers []func(Progress)
	finishHandlers   []func(Report)
	errorHandlers    []func(error)

	state atomic.Int32
	run   *run
}

// New builds a controller and loads its cache file. A missing cache path or a cache file
// that cannot be opened is reported as ErrConfiguration.
func New(opts Options, provider geocoding.Provider, log *slog.Logger, appMetrics *metrics.Metrics) (*Controller, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: geocoding provider is required", ErrConfiguration)
	}
	if log == nil {
		log = slog.Default()
	}
	if appMetrics == nil {
		appMetrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ProviderName == "" {
		opts.ProviderName = "google"
	}

	store, err := cache.Open(opts.Fs, opts.CacheFile, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	completions := make(chan completion)
	limiter := ratelimit.New(opts.RequestsPerSecond)

	return &Controller{
		log:     log,
		cache:   store,
		limiter: limiter,
		metrics: appMetrics,
		scheduler: &scheduler{
			log:          log,
			provider:     provider,
			providerName: opts.ProviderName,
			cache:        store,
			limiter:      limiter,
			retries:      retry.New(opts.MaxRetries, opts.RetryBaseDelay, opts.RetryMaxDelay),
			metrics:      appMetrics,
			completions:  completions,
			inFlight:     make(map[string]*InFlightRequest),
		},
		submissions: make(chan submission),
		completions: completions,
	}, nil
}

// OnProgress registers a handler called after each address of a run completes.
func (c *Controller) OnProgress(handler func(Progress)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.progressHandlers = append(c.progressHandlers, handler)
}

// OnFinish registers a handler called once per run when all of its work has drained.
func (c *Controller) OnFinish(handler func(Report)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.finishHandlers = append(c.finishHandlers, handler)
}

// OnError registers a handler for non-fatal per-address errors (*AddressError).
func (c *Controller) OnError(handler func(error)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.errorHandlers = append(c.errorHandlers, handler)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Lookup returns the cached record of address.
func (c *Controller) Lookup(address string) (models.AddressRecord, bool) {
	return c.cache.Lookup(address)
}

// Run processes submissions and provider answers until ctx is canceled.
// A run in progress when ctx is canceled is abandoned without a finish event.
func (c *Controller) Run(ctx context.Context) {
	limiterDone := make(chan struct{})
	go func() {
		defer close(limiterDone)
		c.limiter.Run(ctx)
	}()

	c.log.InfoContext(ctx, "Batch geocoder started")

	for {
		select {
		case <-ctx.Done():
			c.limiter.Stop()
			<-limiterDone
			c.log.InfoContext(ctx, "Batch geocoder stopped", "state", c.State())
			return
		case sub := <-c.submissions:
			c.accept(ctx, sub)
		case done := <-c.completions:
			c.complete(ctx, done)
		}
	}
}

// Submit merges addresses into the current run, starting a new run when idle.
// It returns once the addresses were accepted, not when they are resolved.
func (c *Controller) Submit(ctx context.Context, addresses []string) error {
	return c.send(ctx, submission{addresses: slices.Clone(addresses)})
}

// Resolve submits addresses and waits for the run they joined to finish.
// Because overlapping submissions share a run, the report may hold other addresses too.
func (c *Controller) Resolve(ctx context.Context, addresses []string) (Report, error) {
	reply := make(chan Report, 1)
	if err := c.send(ctx, submission{addresses: slices.Clone(addresses), reply: reply}); err != nil {
		return Report{}, err
	}

	select {
	case report := <-reply:
		return report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Close releases the cache file. The controller must not be used afterwards.
func (c *Controller) Close() error {
	return c.cache.Close()
}

func (c *Controller) send(ctx context.Context, sub submission) error {
	select {
	case c.submissions <- sub:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to submit addresses: %w", ctx.Err())
	}
}

func (c *Controller) accept(ctx context.Context, sub submission) {
	if c.run == nil {
		c.run = newRun()
		c.limiter.Start()
		c.log.InfoContext(ctx, "Starting batch run", "addresses", len(sub.addresses))
	} else {
		c.log.DebugContext(ctx, "Merging addresses into the current run", "addresses", len(sub.addresses))
	}
	c.setState(StateRunning)

	if sub.reply != nil {
		c.run.waiters = append(c.run.waiters, sub.reply)
	}
	for _, address := range sub.addresses {
		c.intake(ctx, address)
	}

	c.setState(StateDraining)
	c.finishIfDrained(ctx)
}

func (c *Controller) intake(ctx context.Context, address string) {
	current := c.run
	if _, seen := current.seen[address]; seen {
		c.log.DebugContext(ctx, "Address already part of the run", "address", address)
		return
	}
	current.seen[address] = struct{}{}
	current.total++

	if !cache.ValidAddress(address) {
		current.errored++
		current.completed++
		c.metrics.AddressesProcessed.WithLabelValues(metrics.StatusError).Inc()
		c.log.WarnContext(ctx, "Rejecting address with a line break", "address", address)
		c.emitError(&AddressError{Address: address, Err: cache.ErrInvalidAddress})
		c.emitProgress(current.progress())

		return
	}

	if record, ok := c.cache.Lookup(address); ok && record.IsTerminal() {
		switch record.Kind {
		case models.Resolved:
			current.results[address] = record.Location
			c.metrics.AddressesProcessed.WithLabelValues(metrics.StatusCached).Inc()
		case models.Failed:
			current.failures[address] = record.Reason
			current.errored++
			c.metrics.AddressesProcessed.WithLabelValues(metrics.StatusFailed).Inc()
		}
		current.completed++
		c.emitProgress(current.progress())

		return
	}

	if !c.scheduler.schedule(address) {
		c.log.DebugContext(ctx, "Address already in flight", "address", address)
	}
}

func (c *Controller) complete(ctx context.Context, done completion) {
	out := c.scheduler.complete(ctx, done)
	if out.kind == outcomeIgnored || out.kind == outcomeRetrying {
		return
	}

	current := c.run
	if current == nil {
		c.log.WarnContext(ctx, "Provider answer arrived outside of a run", "address", out.address)
		return
	}

	switch out.kind {
	case outcomeResolved:
		current.results[out.address] = out.location
		c.metrics.AddressesProcessed.WithLabelValues(metrics.StatusResolved).Inc()
	case outcomeFailed:
		current.failures[out.address] = out.reason
		current.errored++
		c.metrics.AddressesProcessed.WithLabelValues(metrics.StatusFailed).Inc()
	case outcomeTransportError:
		current.errored++
		c.metrics.AddressesProcessed.WithLabelValues(metrics.StatusError).Inc()
	case outcomeRetrying, outcomeIgnored:
	}
	current.completed++

	if out.err != nil {
		if out.kind != outcomeTransportError {
			c.metrics.CacheWriteErrors.Inc()
			c.log.WarnContext(ctx, "Cache entry was not persisted", "address", out.address, "error", out.err)
		}
		c.emitError(&AddressError{Address: out.address, Err: out.err})
	}

	c.emitProgress(current.progress())
	c.finishIfDrained(ctx)
}

// finishIfDrained ends the run once nothing is left to schedule and no request is outstanding.
// Cache appends are synchronous, so every write of the run is flushed at this point.
func (c *Controller) finishIfDrained(ctx context.Context) {
	if c.State() != StateDraining || c.scheduler.outstanding > 0 {
		return
	}

	finished := c.run
	c.run = nil
	c.limiter.Stop()
	c.setState(StateIdle)
	c.metrics.RunsFinished.Inc()

	report := Report{Results: finished.results, Failures: finished.failures}
	c.log.InfoContext(ctx, "Batch run finished",
		"total", finished.total,
		"resolved", len(finished.results),
		"errored", finished.errored,
	)

	c.handlersMu.RLock()
	handlers := slices.Clone(c.finishHandlers)
	c.handlersMu.RUnlock()
	for _, handler := range handlers {
		handler(report)
	}

	for _, waiter := range finished.waiters {
		waiter <- report
	}
}

func (c *Controller) emitProgress(progress Progress) {
	c.handlersMu.RLock()
	handlers := slices.Clone(c.progressHandlers)
	c.handlersMu.RUnlock()

	for _, handler := range handlers {
		handler(progress)
	}
}

func (c *Controller) emitError(err error) {
	c.handlersMu.RLock()
	handlers := slices.Clone(c.errorHandlers)
	c.handlersMu.RUnlock()

	for _, handler := range handlers {
		handler(err)
	}
}

func (c *Controller) setState(state State) {
	c.state.Store(int32(state))
}
