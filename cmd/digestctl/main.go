// Command digestctl is the operator CLI for inspecting and nudging the
// coordinator's feed-sync and crawl queues without going through the
// worker-facing HTTP surface.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
