package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistered(t *testing.T) {
	// promauto registers with the default registry at package init; this
	// verifies initialization without panics or duplicate registration.
	tests := []struct {
		name   string
		metric prometheus.Collector
	}{
		{"RequestsSubmittedTotal", RequestsSubmittedTotal},
		{"SubmissionRejectedTotal", SubmissionRejectedTotal},
		{"RequestsClaimedTotal", RequestsClaimedTotal},
		{"RequestsDispatchedTotal", RequestsDispatchedTotal},
		{"DispatchDuration", DispatchDuration},
		{"UnclaimedRequests", UnclaimedRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s is nil", tt.name)
			}
		})
	}
}

func TestDispatchOutcomeLabels(t *testing.T) {
	RequestsDispatchedTotal.WithLabelValues("sent").Inc()
	RequestsDispatchedTotal.WithLabelValues("failed").Inc()
	SubmissionRejectedTotal.WithLabelValues("recipient_count").Inc()
	SubmissionRejectedTotal.WithLabelValues("attachment_size").Inc()
	// No panic means labels are valid
}

func TestHandlerExposesCounters(t *testing.T) {
	// Label children of the vecs only appear in the exposition once used.
	RequestsSubmittedTotal.Inc()
	SubmissionRejectedTotal.WithLabelValues("recipient_count").Inc()
	RequestsDispatchedTotal.WithLabelValues("sent").Inc()
	UnclaimedRequests.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	exposition := string(body)
	for _, name := range []string{
		"mail_requests_submitted_total",
		"mail_submission_rejected_total",
		"mail_requests_claimed_total",
		"mail_requests_dispatched_total",
		"mail_dispatch_duration_seconds",
		"mail_requests_unclaimed",
	} {
		if !strings.Contains(exposition, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}
