package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/latency"
	"github.com/corretto/heapothesys-go/internal/metrics"
)

func TestQueueDepthGaugeReportsLastValue(t *testing.T) {
	r := metrics.New()
	r.SetQueueDepth("browsing-0", 7)
	r.SetQueueDepth("browsing-0", 3)

	require.Greater(t, testutil.CollectAndCount(r.Registerer()), 0)

	want := `
# HELP heapothesys_queue_depth Current depth of a named queue instance.
# TYPE heapothesys_queue_depth gauge
heapothesys_queue_depth{queue="browsing-0"} 3
`
	require.NoError(t, testutil.GatherAndCompare(r.Registerer(), strings.NewReader(want), "heapothesys_queue_depth"))
}

func TestReplacementCounterIncrements(t *testing.T) {
	r := metrics.New()
	r.IncReplacement("product")
	r.IncReplacement("product")
	r.IncReplacement("customer")

	families, err := r.Registerer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	want := `
# HELP heapothesys_replacements_total Count of entity replacements performed, by kind.
# TYPE heapothesys_replacements_total counter
heapothesys_replacements_total{kind="customer"} 1
heapothesys_replacements_total{kind="product"} 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Registerer(), strings.NewReader(want), "heapothesys_replacements_total"))
}

func TestObserveLatencyMirrorsSnapshot(t *testing.T) {
	r := metrics.New()
	log := latency.New(0)
	log.Record(500)
	log.Record(900)

	r.ObserveLatency("customer_search", log.Snapshot())

	families, err := r.Registerer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestWaitHistogramsAcceptObservations(t *testing.T) {
	r := metrics.New()
	r.ObserveReadWait(120)
	r.ObserveWriteWait(4500)

	_, err := r.Registerer().Gather()
	require.NoError(t, err)
}
