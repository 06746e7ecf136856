// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package api exposes the history import service over HTTP using the chi
router.

Routes:

	POST   /api/v1/history/imports                          start an async import (202)
	GET    /api/v1/history/imports/{jobID}                  poll a job
	DELETE /api/v1/history/servers/{serverID}/sessions      clear imported history
	GET    /api/v1/history/servers/{serverID}/statistics    summarize imported history
	GET    /api/v1/health/live                              liveness
	GET    /api/v1/health/ready                             readiness (database ping)
	GET    /metrics                                         Prometheus exposition

Every JSON response uses the models.APIResponse envelope. Errors from the
dispatcher map onto status codes as follows:

	dispatch.ErrInvalidArgument, validation failures   400
	database.ErrServerNotFound, jobs.ErrJobNotFound    404
	dispatch.ErrUnsupportedServerType                   422
	anything else                                       500

Middleware order is request id, real IP, panic recovery, CORS (only when
origins are configured), compression, then per-group rate limiting,
security headers and Prometheus request metrics.

Completed jobs are discarded once finalized, so polling a finished job
eventually returns 404. Failed jobs stay readable until the job store
janitor purges them.
*/
package api
