// Package bridge relays a line-delimited JSON-RPC stream between a local
// process and a remote MCP server that speaks the HTTP+SSE transport.
//
// Lines read from the local process are parsed as JSON and POSTed to the
// endpoint the server discloses in its "endpoint" event; messages sent
// before the endpoint is known are queued and flushed in order once it is.
// Server events are written back to the local process, one line each.
//
//	options := &bridge.Options{URL: "http://localhost:8000/sse", SettleDelay: 2 * time.Second}
//	srv, err := bridge.New(ctx, options)
//	if err != nil {
//		return err
//	}
//	return srv.Serve(ctx, os.Stdin, os.Stdout)
//
// The secured variant (Options.Secure) requires a shared secret, sends it as
// the X-MCP-Auth-Token header on every request, and stops on the first 403.
package bridge
