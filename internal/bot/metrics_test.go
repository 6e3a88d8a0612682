package bot

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncDecActiveRequests(t *testing.T) {
	before := testutil.ToFloat64(activeRequests)
	IncActiveRequests()
	assert.Equal(t, before+1, testutil.ToFloat64(activeRequests))

	DecActiveRequests()
	assert.Equal(t, before, testutil.ToFloat64(activeRequests))
}

func TestRecordRequest(t *testing.T) {
	counter := requestsTotal.WithLabelValues("video", "too_large")
	before := testutil.ToFloat64(counter)

	RecordRequest("video", "too_large", 3.5)
	RecordRequest("video", "too_large", 0.2)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecordIgnoredUpdate(t *testing.T) {
	counter := updatesIgnoredTotal.WithLabelValues(ignoreNoURL)
	before := testutil.ToFloat64(counter)

	RecordIgnoredUpdate(ignoreNoURL)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
