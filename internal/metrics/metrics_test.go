package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owacal/internal/deliver"
	"owacal/internal/model"
	"owacal/internal/parse"
	"owacal/internal/pipeline"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveRun(t *testing.T) {
	m := New()
	res := pipeline.Result{
		Snapshot: model.Snapshot{
			Events:     make([]model.Event, 3),
			Candidates: 5,
			Rejected:   2,
			FetchedAt:  time.Unix(1_770_000_000, 0),
		},
		Fragments: 9,
		Reasons: map[parse.Reason]int{
			parse.ReasonSentinel: 1,
			parse.ReasonNoDate:   1,
		},
	}
	m.ObserveRun(res, 2*time.Second)
	m.ObserveRun(res, 3*time.Second)

	out := scrape(t, m)
	assert.Contains(t, out, "owacal_fragments_total 18\n")
	assert.Contains(t, out, "owacal_candidates_total 10\n")
	assert.Contains(t, out, "owacal_events_parsed_total 6\n")
	assert.Contains(t, out, `owacal_candidates_rejected_total{reason="sentinel"} 2`)
	assert.Contains(t, out, `owacal_candidates_rejected_total{reason="no_date"} 2`)
	assert.Contains(t, out, `owacal_refreshes_total{result="ok"} 2`)
	assert.Contains(t, out, "owacal_refresh_duration_seconds_count 2\n")
	assert.Contains(t, out, "owacal_last_success_timestamp_seconds 1.77e+09\n")
	assert.Contains(t, out, "go_goroutines")
}

func TestObserveFailureAndDelivery(t *testing.T) {
	m := New()
	m.ObserveFailure(time.Second)
	m.ObserveDelivery(nil)
	m.ObserveDelivery(&deliver.StatusError{Code: 500})

	out := scrape(t, m)
	assert.Contains(t, out, `owacal_refreshes_total{result="error"} 1`)
	assert.Contains(t, out, `owacal_deliveries_total{outcome="ok"} 1`)
	assert.Contains(t, out, `owacal_deliveries_total{outcome="http_status"} 1`)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{&deliver.MissingFileError{Name: "CA"}, OutcomeMissingTrust},
		{fmt.Errorf("wrapped: %w", &deliver.MissingFileError{Name: "key"}), OutcomeMissingTrust},
		{&deliver.StatusError{Code: 403}, OutcomeHTTPStatus},
		{fmt.Errorf("deliver: post: %w", &deliver.StatusError{Code: 502}), OutcomeHTTPStatus},
		{errors.New("connection refused"), OutcomeTransport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveFailure(time.Second)
	assert.NotContains(t, scrape(t, b), `owacal_refreshes_total{result="error"}`)
}
