// Package main implements the tasklist command line client. Every command
// opens one session on the configured todo file: it restores the cached
// state, reloads from the backend, applies its change, and flushes the
// pending save before exiting.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
