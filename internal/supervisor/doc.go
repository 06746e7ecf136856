// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package supervisor runs the service's long-lived components under a suture
v4 supervisor tree.

# Overview

	RootSupervisor ("historian")
	├── DataSupervisor ("data-layer")
	│   └── jobs.Janitor            purge of expired failed jobs (gocron)
	├── WorkerSupervisor ("worker-layer")
	│   └── dispatch.Pool           background import execution
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

Each layer counts failures on its own, so a listener that keeps failing to
bind backs off without restarting the worker pool and losing its place.

# Shutdown

Cancelling the context passed to Serve stops every layer. The worker pool
cancels running imports, which record themselves as failed, and waits for
them before returning. ShutdownTimeout bounds that wait.

# Logging

Supervisor events (service start, failure, backoff, restart) go through
sutureslog into an slog.Logger. Callers pass logging.NewSlogLogger() so the
events land in the same zerolog stream as the rest of the service.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(janitor)
	tree.AddWorkerService(pool)
	tree.AddAPIService(services.NewHTTPServerService(server, addr, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_ = tree.Serve(ctx)
*/
package supervisor
