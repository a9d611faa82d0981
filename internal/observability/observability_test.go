package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "fitlog", "warn", FormatLogfmt)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("remote unavailable", "op", "load")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "remote unavailable")
	require.Contains(t, out, "op=load")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(nil, "fitlog", "loud", FormatText)
	require.Error(t, err)
}

func TestRecordLogPersistedIgnoresZero(t *testing.T) {
	ts := time.Date(2025, 3, 5, 8, 30, 0, 0, time.UTC)
	RecordLogPersisted(ts)
	RecordLogPersisted(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(logPersistGauge))

	RecordEventRecorded(ts.Add(time.Minute))
	require.Equal(t, float64(ts.Add(time.Minute).Unix()), testutil.ToFloat64(eventRecordedGauge))
}
