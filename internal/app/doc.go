// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package app assembles the components shared by the server and the CLI:
// the session database with its credential cipher and seeded servers, the
// worker pool and the import dispatcher.
package app
