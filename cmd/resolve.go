package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/UnknownOlympus/atlas-batch/internal/batch"
	"github.com/UnknownOlympus/atlas-batch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	resolveCache      string
	resolveInput      string
	resolveAPIKey     string
	resolveClientID   string
	resolvePrivateKey string
	resolveRPS        float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [addresses...]",
	Short: "Geocode addresses and print the report as JSON",
	Long: "Geocodes the addresses given as arguments and, with --input, one address per line of a file " +
		"(\"-\" reads stdin). Cached addresses are answered without calling the provider.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyResolveFlags()

		addresses, err := collectAddresses(args, resolveInput, cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctrl, err := newController(cfg, logger, metrics.NewMetrics(prometheus.NewRegistry()))
		if err != nil {
			return err
		}
		defer ctrl.Close()

		return resolveAddresses(cmd.Context(), ctrl, addresses, cmd.OutOrStdout())
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCache, "cache", "", "cache file (default from ATLAS_CACHE_FILE)")
	resolveCmd.Flags().StringVar(&resolveInput, "input", "", "file with one address per line, - for stdin")
	resolveCmd.Flags().StringVar(&resolveAPIKey, "api-key", "", "Google API key")
	resolveCmd.Flags().StringVar(&resolveClientID, "client-id", "", "Google client id")
	resolveCmd.Flags().StringVar(&resolvePrivateKey, "private-key", "", "Google private key of the client id")
	resolveCmd.Flags().Float64Var(&resolveRPS, "rps", 0, "provider requests per second (default from credentials)")
	rootCmd.AddCommand(resolveCmd)
}

// applyResolveFlags lets explicitly set flags override the loaded configuration.
func applyResolveFlags() {
	if resolveCache != "" {
		cfg.CacheFile = resolveCache
	}
	if resolveAPIKey != "" {
		cfg.APIKey = resolveAPIKey
	}
	if resolveClientID != "" {
		cfg.ClientID = resolveClientID
	}
	if resolvePrivateKey != "" {
		cfg.PrivateKey = resolvePrivateKey
	}
	if resolveRPS > 0 {
		cfg.RequestsPerSecond = resolveRPS
	}
}

// collectAddresses merges argument addresses with the lines of input. Blank entries are
// skipped, everything else is kept verbatim.
func collectAddresses(args []string, input string, stdin io.Reader) ([]string, error) {
	addresses := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.TrimSpace(arg) != "" {
			addresses = append(addresses, arg)
		}
	}

	if input == "" {
		return addresses, nil
	}

	reader := stdin
	if input != "-" {
		file, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		reader = file
	}

	scanner := bufio.NewScanner(reader)
	// ScanLines drops the line terminator, including a trailing \r; the rest is the cache key.
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			addresses = append(addresses, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return addresses, nil
}

// resolveAddresses runs ctrl for a single batch and writes its report to out.
func resolveAddresses(ctx context.Context, ctrl *batch.Controller, addresses []string, out io.Writer) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		ctrl.Run(groupCtx)
		return nil
	})

	report, err := ctrl.Resolve(ctx, addresses)
	cancel()
	if waitErr := group.Wait(); waitErr != nil {
		return waitErr
	}
	if err != nil {
		return fmt.Errorf("resolve addresses: %w", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
