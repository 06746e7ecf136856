// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package middleware holds the HTTP middleware shared by every API route:
// request id propagation into the logging context and Prometheus request
// instrumentation. Both use the func(http.Handler) http.Handler shape so
// they plug straight into chi's r.Use.
package middleware
