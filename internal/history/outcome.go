// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package history

import "github.com/tomtom215/historian/internal/models"

// OutcomeKind tags the result of normalizing one upstream entry.
type OutcomeKind int

const (
	// OutcomeSession carries a normalized session.
	OutcomeSession OutcomeKind = iota
	// OutcomeSkip drops the entry; Reason says why.
	OutcomeSkip
	// OutcomeFatal aborts the import with Err.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSession:
		return "session"
	case OutcomeSkip:
		return "skip"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Skip reasons. These are also metric label values.
const (
	SkipMissingTimestamp = "missing_timestamp"
	SkipMissingItemID    = "missing_item_id"
	SkipMissingUser      = "missing_user"
	SkipUnknownAccount   = "unknown_account"
)

// Outcome is the tagged result for one upstream entry.
type Outcome struct {
	Kind    OutcomeKind
	Session *models.Session
	Reason  string
	Err     error
}

// Normalized wraps a successfully converted session.
func Normalized(s *models.Session) Outcome {
	return Outcome{Kind: OutcomeSession, Session: s}
}

// Skipped drops an entry. err may be nil.
func Skipped(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeSkip, Reason: reason, Err: err}
}

// Fatal aborts the run.
func Fatal(err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Err: err}
}
