package httpapi

import (
	"io"
	"log"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuditProxy forwards read requests for an order's checkout trail to the
// audit service.
type AuditProxy struct {
	Target string
	Client HTTPClient
}

func NewAuditProxy(target string, client HTTPClient) *AuditProxy {
	return &AuditProxy{Target: target, Client: client}
}

func (p *AuditProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := p.Target + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}
	log.Printf("PROXY: %s %s -> %s", r.Method, r.URL.Path, url)

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, nil)
	if err != nil {
		writeErrorBody(w, http.StatusInternalServerError, "internal", "Something went wrong.")
		return
	}
	req.Header.Set("Accept", "application/json")
	if id := r.Header.Get("X-Request-Id"); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		log.Printf("ERROR: Failed to proxy to %s: %v", p.Target, err)
		writeErrorBody(w, http.StatusBadGateway, "fetch", "Could not reach the server. Please try again.")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("ERROR: Failed to copy response: %v", err)
	}
}
