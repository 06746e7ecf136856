// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package dispatch is the entry point for historical imports.

Service validates a request, resolves the server's importer and either runs
the import inline (ImportHistory) or records a queued job and hands it to a
TaskRunner (StartAsyncImport). The background task moves the job to
running, imports through a history.Writer that checkpoints progress into
the job, and finalizes it:

	queued -> running -> completed   (record discarded)
	                  -> failed      (record kept until purged)

Pool is the production TaskRunner. It is a suture.Service, so tasks
submitted before the supervisor starts it are buffered. Concurrency can be
capped with PoolConfig.MaxConcurrent, and imports of the same server are
serialized when PoolConfig.SerializeByKey is set. A panicking task is
recovered and its job marked failed.

Errors:
  - database.ErrServerNotFound when the server is not registered
  - ErrUnsupportedServerType (as *UnsupportedServerTypeError) for server
    types without an importer
  - ErrInvalidArgument for out-of-range days_back or max_results
  - jobs.ErrJobNotFound from GetJobStatus once a job completed

None of these create a job record.
*/
package dispatch
