package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordOTPEventIncrementsOutcome(t *testing.T) {
	RegisterMetrics()
	before := testutil.ToFloat64(otpEventsTotal.WithLabelValues("issued"))

	RecordOTPEvent("issued")

	require.Equal(t, before+1, testutil.ToFloat64(otpEventsTotal.WithLabelValues("issued")))
}

func TestRecordSubmissionCountsOutcome(t *testing.T) {
	RegisterMetrics()
	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("duplicate"))

	RecordSubmission("duplicate", 0, 0)
	RecordSubmission("stored", 150, 200)

	require.Equal(t, before+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("duplicate")))
	require.Equal(t, 1, testutil.CollectAndCount(submissionScore))
}
