// Command heapothesys runs the synthetic e-commerce memory-allocation
// workload: it wires together a dictionary, a catalogue/registry pair in
// whichever concurrency mode the configuration selects, and a simulation
// scheduler, then runs it for the configured duration.
//
// This entry point is intentionally thin. Argument splitting, config
// parsing/validation, and the worker loops themselves all live in
// internal packages; main just wires them together and picks an exit
// code.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corretto/heapothesys-go/internal/catalogue"
	"github.com/corretto/heapothesys-go/internal/config"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/logging"
	"github.com/corretto/heapothesys-go/internal/metrics"
	"github.com/corretto/heapothesys-go/internal/registry"
	"github.com/corretto/heapothesys-go/internal/report"
	"github.com/corretto/heapothesys-go/internal/sim"
)

// exit codes.
const (
	exitOK          = 0
	exitConfigError = 1
	exitRunError    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run does the actual work and returns a process exit code, so main
// itself stays a one-line os.Exit call and the logic here is testable
// without forking a process.
func run(args []string, stdout, stderr *os.File) int {
	cfg, err := config.ParseTokens(args)
	if err != nil {
		fmt.Fprintf(stderr, "heapothesys: %v\n", err)
		fmt.Fprintln(stderr, usage())
		return exitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "heapothesys: %v\n", err)
		fmt.Fprintln(stderr, usage())
		return exitConfigError
	}

	logLevel := logging.LevelInfo
	logger, err := logging.New(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "heapothesys: building logger: %v\n", err)
		return exitConfigError
	}
	defer func() { _ = logger.Sync() }()

	dict, err := buildDictionary(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "heapothesys: %v\n", err)
		return exitConfigError
	}

	rng := rand.New(rand.NewSource(int64(cfg.RandomSeed)))

	cat := buildCatalogue(cfg, rng, dict)
	reg := buildRegistry(cfg, rng, dict)

	metricsReg := metrics.New()
	if cfg.MetricsListenAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsListenAddr, metricsReg, logger)
		defer stopMetrics()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SimulationDuration)
	defer cancel()
	watchSignals(ctx, cancel)

	sched := sim.New(cfg, cat, reg, dict, logger, metricsReg)

	summary, err := sched.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "heapothesys: run failed: %v\n", err)
		return exitRunError
	}

	var reporter report.Reporter = report.NopReporter{}
	if err := reporter.WriteHuman(stdout, summary); err != nil {
		fmt.Fprintf(stderr, "heapothesys: writing report: %v\n", err)
		return exitRunError
	}
	if cfg.ReportCSV {
		if err := reporter.WriteCSV(stdout, summary); err != nil {
			fmt.Fprintf(stderr, "heapothesys: writing CSV report: %v\n", err)
			return exitRunError
		}
	}

	logger.Info("run complete", zap.Int("threads", len(summary.Threads)))

	return exitOK
}

// buildDictionary loads DictionaryFile if given, otherwise synthesizes a
// DictionarySize-word in-memory dictionary from a small fixed seed
// vocabulary repeated/indexed out to size (LoadFile's stride-skip keeps
// real files from reading contiguously; there's no file to skip here, so
// a flat synthetic list is enough).
func buildDictionary(cfg *config.Config) (dictionary.Dictionary, error) {
	if cfg.DictionaryFile != "" {
		f, err := os.Open(cfg.DictionaryFile)
		if err != nil {
			return nil, fmt.Errorf("opening dictionary file: %w", err)
		}
		defer f.Close()
		return dictionary.LoadFile(f, int(cfg.DictionarySize))
	}
	return syntheticDictionary(int(cfg.DictionarySize)), nil
}

var seedWords = []string{
	"amber", "basin", "cedar", "delta", "ember", "forge", "glade", "heron",
	"ivory", "jasper", "kelp", "lumen", "maple", "nectar", "onyx", "pebble",
	"quartz", "river", "slate", "timber", "umbra", "valley", "willow", "xenon",
	"yarrow", "zephyr",
}

func syntheticDictionary(size int) *dictionary.SliceDictionary {
	if size <= 0 {
		return dictionary.NewSliceDictionary(append([]string(nil), seedWords...))
	}
	words := make([]string, size)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", seedWords[i%len(seedWords)], i/len(seedWords))
	}
	return dictionary.NewSliceDictionary(words)
}

func buildCatalogue(cfg *config.Config, rng *rand.Rand, dict dictionary.Dictionary) catalogue.Catalogue {
	n := int(cfg.NumProducts)
	nameWords := int(cfg.ProductNameLength)
	descWords := int(cfg.ProductDescriptionLength)
	maxChunk := int(cfg.MaxArrayLength)
	switch {
	case cfg.PhasedUpdates:
		return catalogue.NewPhased(n, rng, dict, nameWords, descWords, maxChunk)
	case cfg.FastAndFurious:
		return catalogue.NewFineGrained(n, rng, dict, nameWords, descWords, maxChunk)
	default:
		return catalogue.NewCoarse(n, rng, dict, nameWords, descWords, maxChunk)
	}
}

func buildRegistry(cfg *config.Config, rng *rand.Rand, dict dictionary.Dictionary) registry.Registry {
	n := int(cfg.NumCustomers)
	maxChunk := int(cfg.MaxArrayLength)
	switch {
	case cfg.PhasedUpdates:
		return registry.NewPhased(n, rng, dict, maxChunk)
	case cfg.FastAndFurious:
		return registry.NewFineGrained(n, rng, dict, maxChunk)
	default:
		return registry.NewCoarse(n, rng, dict, maxChunk)
	}
}

// serveMetrics starts the Prometheus exposition endpoint on addr and
// returns a func that shuts it down. Listener errors after startup are
// logged, not fatal — a metrics outage shouldn't abort a running
// simulation.
func serveMetrics(addr string, reg *metrics.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Registerer(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped unexpectedly", zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// watchSignals cancels cancel on SIGINT/SIGTERM, so an operator can stop
// a run early instead of waiting out the full SimulationDuration;
// reaching end_simulation_time remains the only cancellation signal the
// scheduler itself understands.
func watchSignals(ctx context.Context, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
}

func usage() string {
	return strings.TrimSpace(`
usage: heapothesys -dKey=Value [-dKey=Value ...]

Every key corresponds to a Config field (see internal/config). Common
keys:

  -dNumProducts=1000 -dNumCustomers=1000
  -dCustomerThreads=4 -dServerThreads=2
  -dSimulationDuration=30s
  -dFastAndFurious=true | -dPhasedUpdates=true
  -dMetricsListenAddr=:9090
`)
}
