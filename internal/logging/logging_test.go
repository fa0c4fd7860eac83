package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/logging"
)

func TestNewBuildsUsableLogger(t *testing.T) {
	log, err := logging.New(logging.LevelInfo)
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("test message")
}

func TestNewNopDiscardsWithoutPanicking(t *testing.T) {
	log := logging.NewNop()
	log.Error("should be discarded", logging.WorkerFields("w1", "idle", 3)...)
}

func TestWorkerFieldsCarrySlot(t *testing.T) {
	fields := logging.WorkerFields("server-2", "drain_sales_queue", 5)
	require.Len(t, fields, 3)
}
