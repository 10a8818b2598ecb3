// Package main implements drill-server, the HTTP API for practice sessions
// over resource lists, together with its database migration commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
