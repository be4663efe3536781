// ABOUTME: Entry point for the callbridge MCP server and CLI
// ABOUTME: Delegates to the cobra command tree in the cli package
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harperreed/callbridge/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
