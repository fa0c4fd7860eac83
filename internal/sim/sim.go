// Package sim implements the simulation scheduler: it owns the queue
// tables, drives the customer and server worker goroutines on their
// staggered release schedule, optionally drives a phased-updates
// rebuilder, and optionally wraps the whole run in a transaction-rate
// binary-step search loop.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corretto/heapothesys-go/internal/catalogue"
	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/config"
	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/latency"
	"github.com/corretto/heapothesys-go/internal/logging"
	"github.com/corretto/heapothesys-go/internal/metrics"
	"github.com/corretto/heapothesys-go/internal/model"
	"github.com/corretto/heapothesys-go/internal/queue"
	"github.com/corretto/heapothesys-go/internal/registry"
	"github.com/corretto/heapothesys-go/internal/report"
)

// Scheduler owns every per-run shared-mutable resource: the queue
// tables, the catalogue and registry (already constructed by the caller
// in whichever concurrency mode), and the optional rebuild functions
// driving phased-updates mode.
type Scheduler struct {
	cfg  *config.Config
	cat  catalogue.Catalogue
	reg  registry.Registry
	dict dictionary.Dictionary

	logger  *zap.Logger
	metrics *metrics.Registry

	browsingQueues []*queue.BrowsingHistoryQueue
	salesQueues    []*queue.SalesTransactionQueue

	catalogueRebuild func()
	registryRebuild  func()
}

// New constructs a Scheduler. logger and metricsReg may be nil, in which
// case a no-op logger is used and metrics are simply not observed.
func New(cfg *config.Config, cat catalogue.Catalogue, reg registry.Registry, dict dictionary.Dictionary, logger *zap.Logger, metricsReg *metrics.Registry) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Scheduler{
		cfg:            cfg,
		cat:            cat,
		reg:            reg,
		dict:           dict,
		logger:         logger,
		metrics:        metricsReg,
		browsingQueues: make([]*queue.BrowsingHistoryQueue, cfg.BrowsingHistoryQueueCount),
		salesQueues:    make([]*queue.SalesTransactionQueue, cfg.SalesTransactionQueueCount),
	}
	for i := range s.browsingQueues {
		s.browsingQueues[i] = queue.NewBrowsingHistoryQueue()
	}
	for i := range s.salesQueues {
		s.salesQueues[i] = queue.NewSalesTransactionQueue()
	}

	if rebuild, ok := catalogue.Rebuilder(cat); ok {
		s.catalogueRebuild = rebuild
	}
	if rebuild, ok := registry.Rebuilder(reg, s.onCustomerRetire); ok {
		s.registryRebuild = rebuild
	}

	return s
}

// onCustomerRetire is the registry.OnRetire callback: a replaced
// customer's drained save-for-later entries get unlinked from whichever
// queue instance owns them.
func (s *Scheduler) onCustomerRetire(h *model.BrowsingHistory) {
	if h.QueueID < 0 || h.QueueID >= len(s.browsingQueues) {
		return
	}
	s.browsingQueues[h.QueueID].Remove(h.Handle())
}

// Run drives the full simulation until ctx is cancelled (cmd/heapothesys
// derives ctx's deadline from Config.SimulationDuration), wrapping it in
// the transaction-rate search loop when configured.
func (s *Scheduler) Run(ctx context.Context) (report.Summary, error) {
	if s.hasRateThresholds() {
		return s.runWithRateSearch(ctx)
	}
	return s.runOnce(ctx, s.cfg.CustomerPeriod, s.cfg.CustomerThinkTime)
}

func (s *Scheduler) hasRateThresholds() bool {
	c := s.cfg
	return c.MaxP50CustomerPrepMicroseconds != 0 ||
		c.MaxP95CustomerPrepMicroseconds != 0 ||
		c.MaxP99CustomerPrepMicroseconds != 0 ||
		c.MaxP999CustomerPrepMicroseconds != 0 ||
		c.MaxP9999CustomerPrepMicroseconds != 0 ||
		c.MaxP99999CustomerPrepMicroseconds != 0 ||
		c.MaxP100CustomerPrepMicroseconds != 0
}

// rateSearchTrialDuration is how long each step of the binary-step search
// runs before its success/failure is evaluated. Short enough that the
// search converges in a reasonable wall-clock budget, long enough that
// each trial gathers a meaningful percentile sample.
const rateSearchTrialDuration = 2 * time.Second

// runWithRateSearch implements the optional transaction-rate search:
// begin at the configured period/think-time, on success scale both by
// 0.9 (10% faster), on two consecutive failures before any success scale
// by 1.1 (10% slower), and after the first success scale failures by
// 1.025 (2.5% slower, a smaller backward step). Terminates after three
// consecutive backward steps.
func (s *Scheduler) runWithRateSearch(ctx context.Context) (report.Summary, error) {
	period := s.cfg.CustomerPeriod
	think := s.cfg.CustomerThinkTime

	consecutiveFailures := 0
	consecutiveBackward := 0
	everSucceeded := false

	var last report.Summary
	for {
		if ctx.Err() != nil {
			return last, nil
		}

		trialCtx, cancel := context.WithTimeout(ctx, rateSearchTrialDuration)
		summary, err := s.runOnce(trialCtx, period, think)
		cancel()
		if err != nil {
			return summary, err
		}
		last = summary

		if s.rateSearchSucceeded(summary, period) {
			s.logger.Info("rate search step succeeded", zap.Duration("period", period), zap.Duration("think_time", think))
			consecutiveFailures = 0
			consecutiveBackward = 0
			everSucceeded = true
			period = scaleDuration(period, 0.9)
			think = scaleDuration(think, 0.9)
			continue
		}

		consecutiveFailures++
		backward := false
		if !everSucceeded {
			if consecutiveFailures >= 2 {
				period = scaleDuration(period, 1.1)
				think = scaleDuration(think, 1.1)
				consecutiveFailures = 0
				backward = true
			}
		} else {
			period = scaleDuration(period, 1.025)
			think = scaleDuration(think, 1.025)
			backward = true
		}
		if backward {
			consecutiveBackward++
			s.logger.Info("rate search step backed off", zap.Duration("period", period), zap.Duration("think_time", think), zap.Int("consecutive_backward", consecutiveBackward))
			if consecutiveBackward >= 3 {
				return last, nil
			}
		}
	}
}

// rateSearchSucceeded reports whether a trial kept up with its schedule
// (every customer thread completed at least as many periods as scheduled,
// allowing a CustomerThreads-wide slack for in-flight work at the trial's
// cutoff) and satisfied every configured percentile threshold.
func (s *Scheduler) rateSearchSucceeded(summary report.Summary, period time.Duration) bool {
	expected := int64(s.cfg.CustomerThreads) * int64(rateSearchTrialDuration/period)
	observed := int64(summary.CustomerAggregate.Count)
	if observed < expected-int64(s.cfg.CustomerThreads) {
		return false
	}
	return percentileThresholdsSatisfied(s.cfg, summary.CustomerAggregate)
}

func percentileThresholdsSatisfied(cfg *config.Config, snap latency.Snapshot) bool {
	checks := []struct {
		threshold uint32
		value     int64
	}{
		{cfg.MaxP50CustomerPrepMicroseconds, snap.P50},
		{cfg.MaxP95CustomerPrepMicroseconds, snap.P95},
		{cfg.MaxP99CustomerPrepMicroseconds, snap.P99},
		{cfg.MaxP999CustomerPrepMicroseconds, snap.P999},
		{cfg.MaxP9999CustomerPrepMicroseconds, snap.P9999},
		{cfg.MaxP99999CustomerPrepMicroseconds, snap.P99999},
		{cfg.MaxP100CustomerPrepMicroseconds, snap.P100},
	}
	for _, c := range checks {
		if c.threshold == 0 {
			continue
		}
		if c.value > int64(c.threshold) {
			return false
		}
	}
	return true
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return clock.NewRelative(d).ScaleFloat(factor).Duration()
}

// recordSample records d into log at sampleTime, unless
// Config.ResponseTimeMeasurements disables measurement entirely (0) or
// sampleTime still falls within the warmup window ending at warmupEnd.
func (s *Scheduler) recordSample(log *latency.Log, warmupEnd, sampleTime clock.Absolute, d time.Duration) {
	if s.cfg.ResponseTimeMeasurements == 0 {
		return
	}
	if sampleTime.Before(warmupEnd) {
		return
	}
	log.RecordDuration(d)
}

// runOnce spins up every worker goroutine for one continuous run (either
// the whole simulation, or one trial of the rate search), waits for ctx
// to end their loops, and returns the assembled report.
func (s *Scheduler) runOnce(ctx context.Context, customerPeriod, thinkTime time.Duration) (report.Summary, error) {
	var wg sync.WaitGroup
	start := clock.Now()
	warmupEnd := start.Add(clock.NewRelative(s.cfg.WarmupDuration))

	customerLogs := make([]*latency.Log, s.cfg.CustomerThreads)
	serverLogs := make([]*latency.Log, s.cfg.ServerThreads)
	attention := newAttentionLogs()

	for i := range customerLogs {
		customerLogs[i] = latency.New(0)
		wg.Add(1)
		go func(id int, log *latency.Log) {
			defer wg.Done()
			s.runCustomerWorker(ctx, id, start, warmupEnd, customerPeriod, thinkTime, log)
		}(i, customerLogs[i])
	}

	for i := range serverLogs {
		serverLogs[i] = latency.New(0)
		wg.Add(1)
		go func(id int, log *latency.Log) {
			defer wg.Done()
			s.runServerWorker(ctx, id, start, warmupEnd, s.cfg.ServerPeriod, attention, log)
		}(i, serverLogs[i])
	}

	if s.catalogueRebuild != nil || s.registryRebuild != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runRebuilder(ctx)
		}()
	}

	if s.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runMetricsSampler(ctx, customerLogs, serverLogs, attention)
		}()
	}

	wg.Wait()

	return s.buildSummary(customerLogs, serverLogs, attention), nil
}

// runRebuilder ticks at PhasedUpdateInterval, folding each structure's
// pending change log into a fresh snapshot. A no-op call is cheap (the
// rebuild functions return immediately when their log is empty), so one
// ticker safely drives both catalogue and registry regardless of which
// (if either) is actually in phased mode.
func (s *Scheduler) runRebuilder(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PhasedUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.catalogueRebuild != nil {
				s.catalogueRebuild()
			}
			if s.registryRebuild != nil {
				s.registryRebuild()
			}
		}
	}
}

// metricsSampleInterval is how often runMetricsSampler mirrors queue
// depths and latency snapshots into the Prometheus registry. It is
// deliberately much coarser than any worker period: metrics are a
// point-in-time sample of already-accumulated state, not a per-operation
// observation.
const metricsSampleInterval = 250 * time.Millisecond

func (s *Scheduler) runMetricsSampler(ctx context.Context, customerLogs, serverLogs []*latency.Log, attention *attentionLogs) {
	ticker := time.NewTicker(metricsSampleInterval)
	defer ticker.Stop()
	sample := func() {
		for i, q := range s.browsingQueues {
			s.metrics.SetQueueDepth(fmt.Sprintf("browsing-%d", i), q.Len())
		}
		for i, q := range s.salesQueues {
			s.metrics.SetQueueDepth(fmt.Sprintf("sales-%d", i), q.Len())
		}
		s.metrics.ObserveLatency("customer", mergeLogs(customerLogs).Snapshot())
		s.metrics.ObserveLatency("server", mergeLogs(serverLogs).Snapshot())
		for _, name := range attentionNames {
			s.metrics.ObserveLatency(name, attention.logs[name].Snapshot())
		}
		if readWait, writeWait, ok := catalogue.WaitLogs(s.cat); ok {
			s.metrics.ObserveLatency("catalogue_read_wait", readWait.Snapshot())
			s.metrics.ObserveLatency("catalogue_write_wait", writeWait.Snapshot())
		}
		if readWait, writeWait, ok := registry.WaitLogs(s.reg); ok {
			s.metrics.ObserveLatency("registry_read_wait", readWait.Snapshot())
			s.metrics.ObserveLatency("registry_write_wait", writeWait.Snapshot())
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

func mergeLogs(logs []*latency.Log) *latency.Log {
	merged := latency.New(0)
	for _, l := range logs {
		merged.Merge(l)
	}
	return merged
}

func (s *Scheduler) buildSummary(customerLogs, serverLogs []*latency.Log, attention *attentionLogs) report.Summary {
	aggregate := latency.New(0)
	customerAggregate := mergeLogs(customerLogs)
	aggregate.Merge(customerAggregate)
	for _, l := range serverLogs {
		aggregate.Merge(l)
	}
	for _, name := range attentionNames {
		aggregate.Merge(attention.logs[name])
	}

	summary := report.Summary{
		ConfigEcho:        s.configEcho(),
		Aggregate:         aggregate.Snapshot(),
		CustomerAggregate: customerAggregate.Snapshot(),
	}

	if s.cfg.ReportIndividualThreads {
		for i, l := range customerLogs {
			summary.Threads = append(summary.Threads, report.ThreadSummary{Name: fmt.Sprintf("customer-%d", i), Snapshot: l.Snapshot()})
		}
		for i, l := range serverLogs {
			summary.Threads = append(summary.Threads, report.ThreadSummary{Name: fmt.Sprintf("server-%d", i), Snapshot: l.Snapshot()})
		}
		for _, name := range attentionNames {
			summary.Threads = append(summary.Threads, report.ThreadSummary{Name: name, Snapshot: attention.logs[name].Snapshot()})
		}
	}

	return summary
}

func (s *Scheduler) configEcho() map[string]string {
	return map[string]string{
		"CustomerThreads":    fmt.Sprintf("%d", s.cfg.CustomerThreads),
		"ServerThreads":      fmt.Sprintf("%d", s.cfg.ServerThreads),
		"CustomerPeriod":     s.cfg.CustomerPeriod.String(),
		"CustomerThinkTime":  s.cfg.CustomerThinkTime.String(),
		"ServerPeriod":       s.cfg.ServerPeriod.String(),
		"NumProducts":        fmt.Sprintf("%d", s.cfg.NumProducts),
		"NumCustomers":       fmt.Sprintf("%d", s.cfg.NumCustomers),
		"FastAndFurious":     fmt.Sprintf("%t", s.cfg.FastAndFurious),
		"PhasedUpdates":      fmt.Sprintf("%t", s.cfg.PhasedUpdates),
		"SimulationDuration": s.cfg.SimulationDuration.String(),
	}
}

// seedRNG gives every worker its own math/rand source, since *rand.Rand
// is not safe for concurrent use and each worker owns its random state
// independently of every other worker's.
func seedRNG(base uint64, kind string, id int) *rand.Rand {
	var k int64
	for _, c := range kind {
		k = k*31 + int64(c)
	}
	return rand.New(rand.NewSource(int64(base) + k + int64(id)*1_000_003))
}
