package main

import (
	"os"

	"github.com/viant/mcp-sse-bridge/bridge"
)

func main() {
	os.Exit(bridge.ExitCode(bridge.Run(os.Args[1:])))
}
