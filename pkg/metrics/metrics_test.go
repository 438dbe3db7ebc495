package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	resp := httptest.NewRecorder()
	r.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	return resp.Body.String()
}

func TestIncrementCounter(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("purchases_total", nil)
	r.IncrementCounter("purchases_total", nil)
	r.IncrementCounter("grants_total", map[string]string{"path": "signature"})

	body := scrape(t, r)
	assert.Contains(t, body, "purchases_total 2")
	assert.Contains(t, body, `grants_total{path="signature"} 1`)
}

func TestIncrementCounter_LabelKeysFixedByFirstUse(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("requests_total", map[string]string{"kind": "sale"})
	// Mismatched label set is dropped, not panicked on.
	r.IncrementCounter("requests_total", map[string]string{"other": "x"})
	r.IncrementCounter("requests_total", map[string]string{"kind": "license"})

	body := scrape(t, r)
	assert.Contains(t, body, `requests_total{kind="sale"} 1`)
	assert.Contains(t, body, `requests_total{kind="license"} 1`)
	assert.False(t, strings.Contains(body, "other"))
}

func TestDefaultRegistry(t *testing.T) {
	IncrementCounter("default_registry_probe_total", nil)

	resp := httptest.NewRecorder()
	Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "default_registry_probe_total")
}
