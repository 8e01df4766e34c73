package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyForwardsAllowedEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/battle/CODE1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"CODE1","finished":true}`))
	}))
	defer upstream.Close()

	p := NewResultsProxy(upstream.URL)
	rec := httptest.NewRecorder()
	p.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/results/battle/CODE1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=30", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"code":"CODE1","finished":true}`, rec.Body.String())
}

func TestProxyFinishedEndpointCachesLonger(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	p := NewResultsProxy(upstream.URL)
	rec := httptest.NewRecorder()
	p.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/results/replay/CODE1", nil))

	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestProxyRejectsUnknownEndpoint(t *testing.T) {
	p := NewResultsProxy("http://localhost:0")
	rec := httptest.NewRecorder()
	p.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/results/admin/CODE1", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body struct {
		Error   string   `json:"error"`
		Allowed []string `json:"allowed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.ElementsMatch(t, []string{"battle", "replay", "summary"}, body.Allowed)
}

func TestProxyMalformedPath(t *testing.T) {
	p := NewResultsProxy("http://localhost:0")
	for _, path := range []string{
		"/api/results/battle",
		"/api/results/battle/CODE1/extra",
		"/api/results//CODE1",
	} {
		rec := httptest.NewRecorder()
		p.Handle(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestProxyUpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such battle", http.StatusNotFound)
	}))
	defer upstream.Close()

	p := NewResultsProxy(upstream.URL)
	rec := httptest.NewRecorder()
	p.Handle(rec, httptest.NewRequest(http.MethodGet, "/api/results/battle/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
