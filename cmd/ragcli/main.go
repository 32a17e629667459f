// Command ragcli is a terminal client for the RAG learning-assistant API.
//
//	ragcli [-api URL] [-timeout 30s] <command> [flags] [args]
//
// The session survives between runs in the backend chosen by SESSION_BACKEND.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
