// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package jobs owns the import job record and its lifecycle.

A job moves through a fixed set of states:

	queued -> running -> completed
	queued -> running -> failed
	queued -> failed

Completed and failed are terminal. Tracker is the single writer: every
command (MarkRunning, RecordProgress, RecordError, MarkCompleted, MarkFailed)
checks the current state inside a store transaction and returns
ErrInvalidTransition when the command does not apply. Progress counters only
ever increase.

Records are kept in BadgerDB under "job:<id>" keys (BadgerStore) or in memory
(MemoryStore). The Janitor purges failed jobs past their retention on a cron
schedule. Completed jobs are removed with Discard as soon as they are
finalized, so the Janitor only ever sees failed ones.
*/
package jobs
