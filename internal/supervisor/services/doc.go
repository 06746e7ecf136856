// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package services adapts components with their own lifecycle to suture v4's
Serve(ctx) error contract.

HTTPServerService binds the API listener inside Serve, serves until the
context is cancelled and then shuts the server down within a bounded
timeout. A bind failure is returned as an error so the supervisor retries
with backoff instead of the process exiting.

The worker pool (dispatch.Pool) and the job janitor (jobs.Janitor) already
implement suture.Service and need no wrapper.
*/
package services
