// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Command historian is the operator CLI for the history import service. It
// opens the same database as the server and runs imports synchronously.
//
//	historian servers add --id den --name "Den Plex" --type plex --url http://plex:32400 --token ...
//	historian servers list
//	historian import --server den --days 30
//	historian stats --server den
//	historian clear --server den --yes
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

// run executes the CLI and closes the database whether or not the command
// failed.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := newCommandContext()
	defer cmdCtx.close()

	if err := newRootCommand(cmdCtx).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}
