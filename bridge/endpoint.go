package bridge

import (
	"fmt"
	"net/url"
	"strings"

	afsurl "github.com/viant/afs/url"
)

// ResolveEndpoint turns the data of an endpoint event into an absolute URL.
// Absolute http(s) URLs are returned unchanged; anything else is a path (with
// optional query) on the scheme, host and port of baseURL. Credentials in
// baseURL are not carried over.
func ResolveEndpoint(raw, baseURL string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	if parsed, err := url.Parse(baseURL); err == nil && parsed.User != nil {
		parsed.User = nil
		baseURL = parsed.String()
	}
	base, _ := afsurl.Base(baseURL, "http")
	return base + raw
}

// ValidateBaseURL reports whether baseURL is an absolute http(s) URL.
func ValidateBaseURL(baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%w: sse url %q: %v", ErrConfig, baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: sse url %q: unsupported scheme %q", ErrConfig, baseURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: sse url %q: missing host", ErrConfig, baseURL)
	}
	return nil
}
