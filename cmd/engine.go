package main

import (
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/atlas-batch/internal/batch"
	"github.com/UnknownOlympus/atlas-batch/internal/config"
	"github.com/UnknownOlympus/atlas-batch/internal/geocoding"
	"github.com/UnknownOlympus/atlas-batch/internal/metrics"
	"github.com/spf13/afero"
)

// controllerOptions maps the configuration onto batch options. A zero request rate is
// derived from the kind of credentials in use.
func controllerOptions(conf *config.Config, providerConfig geocoding.ProviderConfig) batch.Options {
	opts := batch.DefaultOptions(conf.CacheFile)
	opts.Fs = afero.NewOsFs()
	opts.RequestsPerSecond = conf.RequestsPerSecond
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = geocoding.DefaultRequestsPerSecond(providerConfig)
	}
	opts.MaxRetries = conf.MaxRetries
	opts.RetryBaseDelay = conf.RetryDelay
	opts.RetryMaxDelay = conf.RetryMaxDelay

	return opts
}

func providerConfig(conf *config.Config, log *slog.Logger) geocoding.ProviderConfig {
	return geocoding.ProviderConfig{
		APIKey:     conf.APIKey,
		ClientID:   conf.ClientID,
		PrivateKey: conf.PrivateKey,
		Logger:     log,
	}
}

// newController builds the Google provider and a controller whose events are logged.
func newController(conf *config.Config, log *slog.Logger, appMetrics *metrics.Metrics) (*batch.Controller, error) {
	pc := providerConfig(conf, log)

	provider, err := geocoding.NewGoogleProvider(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	opts := controllerOptions(conf, pc)
	ctrl, err := batch.New(opts, provider, log, appMetrics)
	if err != nil {
		return nil, err
	}

	log.Info("Batch geocoder configured",
		"cache", opts.CacheFile,
		"requests_per_second", opts.RequestsPerSecond,
		"premium", pc.HasPremiumCredentials(),
	)
	attachLogging(ctrl, log)

	return ctrl, nil
}

func attachLogging(ctrl *batch.Controller, log *slog.Logger) {
	ctrl.OnProgress(func(p batch.Progress) {
		log.Debug("Batch progress", "completed", p.Completed, "total", p.Total, "errored", p.Errored)
	})
	ctrl.OnError(func(err error) {
		log.Warn("Address was not resolved", "error", err)
	})
}
