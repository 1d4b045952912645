package observability

import (
	"testing"
	"time"

	"github.com/danmuck/amqpwire/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("amqpctl", "GET", "/health", 200, 12*time.Millisecond)
	RecordQueueRejected("full")
	RecordRecovery("recovered")
}

func TestRecordWriteCountsRequestsAndBytes(t *testing.T) {
	testlog.Start(t)
	beforeReq := testutil.ToFloat64(writerRequests.WithLabelValues("frame"))
	beforeBytes := testutil.ToFloat64(writerBytes.WithLabelValues("frame"))

	RecordWrite("frame", 10)
	RecordWrite("frame", 6)

	if got := testutil.ToFloat64(writerRequests.WithLabelValues("frame")) - beforeReq; got != 2 {
		t.Fatalf("unexpected request delta: %v", got)
	}
	if got := testutil.ToFloat64(writerBytes.WithLabelValues("frame")) - beforeBytes; got != 16 {
		t.Fatalf("unexpected byte delta: %v", got)
	}
}

func TestRecordWriteFailureCountsDropped(t *testing.T) {
	testlog.Start(t)
	beforeFail := testutil.ToFloat64(writerFailures)
	beforeDrop := testutil.ToFloat64(writerDropped)

	RecordWriteFailure(3)
	RecordWriteFailure(0)

	if got := testutil.ToFloat64(writerFailures) - beforeFail; got != 2 {
		t.Fatalf("unexpected failure delta: %v", got)
	}
	if got := testutil.ToFloat64(writerDropped) - beforeDrop; got != 3 {
		t.Fatalf("unexpected dropped delta: %v", got)
	}
}
