// bcctest checks that pgbouncer's bcc mode keeps a secondary postgres server
// consistent with the primary under pgbench load.
//
// It exits 0 when both servers end up with identical pgbench histories and 1
// otherwise, including when the check could not be carried out.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
