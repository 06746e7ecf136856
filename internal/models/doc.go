// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package models defines the data structures shared across the import service.

Domain records:

  - MediaServer: a registered Plex, Jellyfin, Emby or AudiobookShelf server
  - Session: a normalized playback or listening session, keyed by
    (SessionID, ServerID)
  - ImportJob, JobState, JobStatus: the lifecycle of an asynchronous import
  - ImportResult, ImportStatistics: synchronous run results and per-server
    summaries
  - UserMapping: a source user pinned to a stable internal user id

Transport:

  - APIResponse, Metadata, APIError: the JSON envelope used by internal/api

Provenance:

Imported sessions carry Metadata["imported_from"] set to one of
ImportedFromTags. Clearing imported history deletes exactly the rows
carrying one of these tags, so live sessions written by other components
are never touched.

Models are plain structs with json tags and no behavior beyond small
projections such as ImportJob.Status and Session.ImportedFrom.
*/
package models
