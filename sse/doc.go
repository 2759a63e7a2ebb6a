// Package sse implements the subscribing side of a Server-Sent Events stream.
//
// Supervisor keeps one GET subscription open, decodes the event stream and
// reports open, endpoint, message and error conditions to a Handler. Failed or
// ended subscriptions are retried with exponential backoff, resuming with the
// Last-Event-ID header and honouring the server's retry field, the way a
// browser EventSource does.
package sse
