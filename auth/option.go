package auth

import (
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

type Option func(*Guard)

// WithHeader overrides the header carrying the secret.
func WithHeader(name string) Option {
	return func(g *Guard) {
		g.header = name
	}
}

// WithTokenSource replaces the static secret with a token source.
func WithTokenSource(source oauth2.TokenSource) Option {
	return func(g *Guard) {
		g.tokens = source
	}
}

// WithFailClosed makes any 403 fatal: onReject is called once, with a *RejectedError.
func WithFailClosed(onReject func(error)) Option {
	return func(g *Guard) {
		g.failClosed = true
		g.onReject = onReject
	}
}

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}
