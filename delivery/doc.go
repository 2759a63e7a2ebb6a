// Package delivery posts outbound JSON-RPC messages to the endpoint disclosed
// by the server.
//
// A Dispatcher accepts messages in order on an outbox consumed by a single
// sender goroutine. The sender starts every POST in its own goroutine and only
// waits until the request is written before starting the next one, so
// requests reach the wire in submission order while their responses complete
// independently. Failures are logged and dropped: there is no retry.
package delivery
