package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/config"
)

func defaultTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return config.Default()
}

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRunRejectsUnrecognisedKey(t *testing.T) {
	out, errOut := devNull(t), devNull(t)
	code := run([]string{"-dNotAField=1"}, out, errOut)
	require.Equal(t, exitConfigError, code)
}

func TestRunRejectsMalformedToken(t *testing.T) {
	out, errOut := devNull(t), devNull(t)
	code := run([]string{"NoLeadingDPrefix"}, out, errOut)
	require.Equal(t, exitConfigError, code)
}

func TestRunRejectsInvalidCrossFieldConfig(t *testing.T) {
	out, errOut := devNull(t), devNull(t)
	// FastAndFurious and PhasedUpdates are mutually exclusive.
	code := run([]string{"-dFastAndFurious=true", "-dPhasedUpdates=true"}, out, errOut)
	require.Equal(t, exitConfigError, code)
}

func TestRunCompletesASmallSimulation(t *testing.T) {
	out, errOut := devNull(t), devNull(t)
	code := run([]string{
		"-dNumProducts=20",
		"-dNumCustomers=20",
		"-dDictionarySize=200",
		"-dCustomerThreads=2",
		"-dServerThreads=2",
		"-dBrowsingHistoryQueueCount=2",
		"-dSalesTransactionQueueCount=2",
		"-dCustomerPeriod=5ms",
		"-dCustomerThinkTime=1ms",
		"-dServerPeriod=5ms",
		"-dCustomerReplacementPeriod=50ms",
		"-dProductReplacementPeriod=50ms",
		"-dSimulationDuration=30ms",
	}, out, errOut)
	require.Equal(t, exitOK, code)
}

func TestBuildDictionaryFallsBackToSyntheticWords(t *testing.T) {
	cfg := defaultTestConfig(t)
	cfg.DictionaryFile = ""
	cfg.DictionarySize = 50

	dict, err := buildDictionary(cfg)
	require.NoError(t, err)
	require.Equal(t, 50, dict.Size())
}

func TestBuildDictionaryReadsFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "dict-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("alpha\nbeta\ngamma\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg := defaultTestConfig(t)
	cfg.DictionaryFile = f.Name()
	cfg.DictionarySize = 3

	dict, err := buildDictionary(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, dict.Size())
}
