package observability

import (
	"testing"
	"time"

	"github.com/danmuck/wlprobe/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordRoundtrip(3*time.Millisecond, true)
	SetGlobals(4)
	if got := testutil.ToFloat64(globalsLive); got != 4 {
		t.Fatalf("unexpected globals gauge: %v", got)
	}
}

func TestRecordEventAndViolationCounters(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(eventsDispatched.WithLabelValues("wl_registry.global"))
	RecordEvent("wl_registry.global")
	RecordEvent("wl_registry.global")
	if got := testutil.ToFloat64(eventsDispatched.WithLabelValues("wl_registry.global")); got != before+2 {
		t.Fatalf("unexpected event count: got=%v want=%v", got, before+2)
	}

	beforeV := testutil.ToFloat64(consistencyViolations.WithLabelValues("unknown_name"))
	RecordConsistencyViolation("unknown_name")
	if got := testutil.ToFloat64(consistencyViolations.WithLabelValues("unknown_name")); got != beforeV+1 {
		t.Fatalf("unexpected violation count: got=%v want=%v", got, beforeV+1)
	}
}
