// Package report defines the reporting surface: a Reporter interface and
// the Summary it formats. No concrete human/CSV formatter ships — report
// rendering is explicitly out of scope for the core simulation — except a
// NopReporter used by callers and tests that don't care about output.
package report

import (
	"io"

	"github.com/corretto/heapothesys-go/internal/latency"
)

// ThreadSummary is one worker's latency snapshot, included when
// ReportIndividualThreads is set.
type ThreadSummary struct {
	Name     string
	Snapshot latency.Snapshot
}

// Summary is the full end-of-run report payload: configuration echo,
// aggregated and (optionally) per-thread latency summaries.
type Summary struct {
	ConfigEcho map[string]string
	Aggregate  latency.Snapshot

	// CustomerAggregate is the merge of only the customer-worker threads'
	// latency logs, excluding server/attention-point samples. The
	// transaction-rate search loop checks its percentile thresholds
	// against this, not Aggregate, since the thresholds are named
	// "CustomerPrepMicroseconds".
	CustomerAggregate latency.Snapshot

	Threads []ThreadSummary

	// NetAllocationBalance is always zero by construction: per-thread
	// byte accounting is out of scope for this explicit-ownership design.
	NetAllocationBalance int64
}

// Reporter renders a Summary in one of two output forms, human-readable
// or CSV. Only an interface ships; real formatting is an out-of-scope
// external collaborator.
type Reporter interface {
	WriteHuman(w io.Writer, s Summary) error
	WriteCSV(w io.Writer, s Summary) error
}

// NopReporter discards a Summary without producing output, used by tests
// and by cmd/heapothesys until a real Reporter is injected.
type NopReporter struct{}

func (NopReporter) WriteHuman(io.Writer, Summary) error { return nil }
func (NopReporter) WriteCSV(io.Writer, Summary) error   { return nil }
