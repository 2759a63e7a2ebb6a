package auth

import (
	"net/http"
)

// RoundTripper decorates every request with the guard's secret and reports
// 403 responses to the guard. The response itself is returned unchanged so
// callers can still log its status and body.
type RoundTripper struct {
	guard     *Guard
	transport http.RoundTripper
}

// RoundTripper wraps transport (http.DefaultTransport when nil).
func (g *Guard) RoundTripper(transport http.RoundTripper) *RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &RoundTripper{guard: g, transport: transport}
}

func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	authorized := req.Clone(req.Context())
	if err := r.guard.Decorate(authorized); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	resp, err := r.transport.RoundTrip(authorized)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		r.guard.reject(req, resp)
	}
	return resp, nil
}
