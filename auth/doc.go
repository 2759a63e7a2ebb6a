// Package auth implements the shared-secret guard of the secured bridge.
//
// A Guard validates that a secret is configured, and its RoundTripper attaches
// the secret as the X-MCP-Auth-Token header to every request it carries: the
// SSE subscription and each outbound POST share one RoundTripper, so the
// header policy is defined once. A 403 Forbidden answer on either transport is
// reported to the rejection handler; with WithFailClosed the bridge treats it
// as fatal.
package auth
