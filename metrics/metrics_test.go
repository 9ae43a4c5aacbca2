package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.Counter.GetValue()
}

func TestRecordAPICall(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		success    bool
		wantStatus string
	}{
		{"successful call", "query", true, "success"},
		{"failed call", "edit", false, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := APIRequests.GetMetricWithLabelValues(tt.action, tt.wantStatus)
			if err != nil {
				t.Fatalf("failed to get metric: %v", err)
			}
			before := counterValue(t, counter)

			RecordAPICall(tt.action, 0.2, tt.success)

			if got := counterValue(t, counter); got != before+1 {
				t.Errorf("requests counter = %v, want %v", got, before+1)
			}
		})
	}
}

func TestRecordAPIError(t *testing.T) {
	c, _ := APIErrors.GetMetricWithLabelValues("protectedpage")
	before := counterValue(t, c)
	RecordAPIError("protectedpage")
	if got := counterValue(t, c); got != before+1 {
		t.Errorf("errors = %v, want %v", got, before+1)
	}
}

func TestRecordListPage(t *testing.T) {
	pages, _ := ListPages.GetMetricWithLabelValues("categorymembers")
	items, _ := ListItems.GetMetricWithLabelValues("categorymembers")
	p0, i0 := counterValue(t, pages), counterValue(t, items)

	RecordListPage("categorymembers", 10)
	RecordListPage("categorymembers", 5)

	if got := counterValue(t, pages) - p0; got != 2 {
		t.Errorf("pages delta = %v, want 2", got)
	}
	if got := counterValue(t, items) - i0; got != 15 {
		t.Errorf("items delta = %v, want 15", got)
	}
}

func TestRecordLoop(t *testing.T) {
	failed, _ := ContinuationLoops.GetMetricWithLabelValues("recentchanges", "failed")
	recovered, _ := ContinuationLoops.GetMetricWithLabelValues("recentchanges", "recovered")
	f0, r0 := counterValue(t, failed), counterValue(t, recovered)

	RecordLoop("recentchanges", false)
	RecordLoop("recentchanges", true)
	RecordLoop("recentchanges", true)

	if got := counterValue(t, failed) - f0; got != 1 {
		t.Errorf("failed delta = %v, want 1", got)
	}
	if got := counterValue(t, recovered) - r0; got != 2 {
		t.Errorf("recovered delta = %v, want 2", got)
	}
}

func TestRecordRetry(t *testing.T) {
	c, _ := APIRetries.GetMetricWithLabelValues("maxlag")
	before := counterValue(t, c)
	RecordRetry("maxlag")
	if got := counterValue(t, c); got != before+1 {
		t.Errorf("retries = %v, want %v", got, before+1)
	}
}
