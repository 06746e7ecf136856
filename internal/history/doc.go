// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package history imports past playback activity from media servers.

Each server type has an Importer that pages its upstream history API newest
first, stops at the requested cutoff (now minus days_back) or the max_results
cap, and converts every entry into a tagged Outcome:

  - Session: a normalized models.Session ready to store
  - Skip: a malformed entry, counted and logged, never fatal
  - Fatal: an error that ends the whole run (cancellation)

Outcomes flow into a Sink. The Writer sink stores sessions with
insert-if-absent semantics keyed on (session_id, server_id), so re-running an
import over the same window stores nothing new. It checkpoints job progress
every N processed sessions and once more on Flush.

Importers:

  - PlexImporter: /status/sessions/history/all with a duration fallback chain
    (entry, parent, grandparent, media parts, cached metadata lookup)
  - JellyfinImporter: per-user played items for Jellyfin and Emby; one
    user's failure does not end the run
  - AudiobookShelfImporter: /api/sessions listening sessions

Session IDs are deterministic per source entry:

	plex_history_<ratingKey>_<viewedAt>
	jellyfin_history_<itemId>_<userId>_<lastPlayed>
	emby_history_<itemId>_<userId>_<lastPlayed>
	audiobookshelf_history_<sessionId>_<updatedAt>

Counters:

  - fetched: qualifying entries handed to the sink (sessions and skips)
  - processed: sessions handed to the store
  - stored: sessions that were new
*/
package history
