package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Endpoint cache lifetimes. Live endpoints change while a battle runs;
// finished-match endpoints are immutable once written.
const (
	liveCacheMaxAge     = 30 * time.Second
	finishedCacheMaxAge = time.Hour
)

// proxyEndpoints is the allow-list of result-service endpoints reachable
// through the gateway, mapped to their cache lifetime.
var proxyEndpoints = map[string]time.Duration{
	"battle":  liveCacheMaxAge,
	"replay":  finishedCacheMaxAge,
	"summary": finishedCacheMaxAge,
}

// ResultsProxy forwards GET /api/results/{endpoint}/{code} to the
// external result service, shielding browser clients from its CORS policy.
type ResultsProxy struct {
	baseURL string
	client  *http.Client
}

func NewResultsProxy(baseURL string) *ResultsProxy {
	return &ResultsProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *ResultsProxy) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	endpoint, code, ok := splitResultsPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "expected /api/results/{endpoint}/{code}")
		return
	}

	maxAge, allowed := proxyEndpoints[endpoint]
	if !allowed {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":   fmt.Sprintf("endpoint %q is not proxied", endpoint),
			"allowed": allowedEndpoints(),
		})
		return
	}

	upstream := fmt.Sprintf("%s/%s/%s", p.baseURL, endpoint, code)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", endpoint).Str("code", code).Msg("result service unreachable")
		writeError(w, http.StatusBadGateway, "result service unreachable")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Error().Err(err).Msg("failed to stream proxied response")
	}
}

// splitResultsPath parses /api/results/{endpoint}/{code}. Codes never
// contain slashes, so any extra segment is a malformed path.
func splitResultsPath(path string) (endpoint, code string, ok bool) {
	const prefix = "/api/results/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(path[len(prefix):], "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func allowedEndpoints() []string {
	names := make([]string, 0, len(proxyEndpoints))
	for _, n := range []string{"battle", "replay", "summary"} {
		if _, ok := proxyEndpoints[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
