package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveQuery(t *testing.T) {
	success := QueriesTotal.WithLabelValues("success", "")
	notFound := QueriesTotal.WithLabelValues("error", "not_found")
	beforeSuccess := testutil.ToFloat64(success)
	beforeNotFound := testutil.ToFloat64(notFound)

	ObserveQuery("success", "", 5*time.Millisecond, 3)
	ObserveQuery("error", "not_found", time.Millisecond, 0)

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeNotFound+1, testutil.ToFloat64(notFound))
}

func TestWriteTextfile(t *testing.T) {
	ObserveQuery("success", "", time.Millisecond, 1)
	path := filepath.Join(t.TempDir(), "recall.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "recall_queries_total")
	assert.Contains(t, string(data), "recall_query_duration_seconds")
}
