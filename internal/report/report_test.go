package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/report"
)

func TestNopReporterProducesNoOutput(t *testing.T) {
	var buf bytes.Buffer
	var r report.NopReporter

	require.NoError(t, r.WriteHuman(&buf, report.Summary{}))
	require.Empty(t, buf.String())

	require.NoError(t, r.WriteCSV(&buf, report.Summary{}))
	require.Empty(t, buf.String())
}

func TestSummaryNetAllocationBalanceIsZero(t *testing.T) {
	var s report.Summary
	require.Zero(t, s.NetAllocationBalance)
}
