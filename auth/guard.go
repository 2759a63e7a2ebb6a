package auth

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// HeaderName is the header carrying the shared secret.
const HeaderName = "X-MCP-Auth-Token"

// Guard holds the secret and the policy applied when the server refuses it.
type Guard struct {
	header     string
	tokens     oauth2.TokenSource
	failClosed bool
	onReject   func(error)
	rejected   atomic.Bool
	logger     zerolog.Logger
}

// New returns an active guard for secret. An empty secret is a configuration
// error unless WithTokenSource supplies one.
func New(secret string, options ...Option) (*Guard, error) {
	ret := &Guard{
		header: HeaderName,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.tokens == nil {
		if secret == "" {
			return nil, ErrMissingToken
		}
		token := &oauth2.Token{AccessToken: secret, Expiry: expiry(secret)}
		if !token.Expiry.IsZero() && !token.Valid() {
			ret.logger.Warn().Time("expiry", token.Expiry).Msg("auth token is already expired")
		}
		ret.tokens = oauth2.StaticTokenSource(token)
	}
	return ret, nil
}

// FailClosed reports whether a rejection terminates the bridge.
func (g *Guard) FailClosed() bool {
	return g.failClosed
}

// Rejected reports whether a 403 has been observed.
func (g *Guard) Rejected() bool {
	return g.rejected.Load()
}

// Decorate sets the auth header on req.
func (g *Guard) Decorate(req *http.Request) error {
	token, err := g.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}
	if token.AccessToken == "" {
		return ErrMissingToken
	}
	req.Header.Set(g.header, token.AccessToken)
	return nil
}

// Client returns a copy of base (or a new client) whose transport is guarded.
func (g *Guard) Client(base *http.Client) *http.Client {
	ret := &http.Client{}
	if base != nil {
		*ret = *base
	}
	ret.Transport = g.RoundTripper(ret.Transport)
	return ret
}

func (g *Guard) reject(req *http.Request, resp *http.Response) {
	err := &RejectedError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
	first := !g.rejected.Swap(true)
	if !g.failClosed {
		g.logger.Warn().Err(err).Msg("authentication rejected")
		return
	}
	g.logger.Error().Err(err).Msg("authentication rejected")
	if first && g.onReject != nil {
		g.onReject(err)
	}
}

// expiry returns the exp claim when secret is a JWT. The signature is not
// verified: the server owns validation.
func expiry(secret string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(secret, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
