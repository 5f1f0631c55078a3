package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegisteredSeries(t *testing.T) {
	m := New()
	m.DatagramsReceived.WithLabelValues().Inc()
	m.ResponsesSent.WithLabelValues("200").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "sip_datagrams_received_total")
	require.Contains(t, body, "sip_responses_sent_total")
}
