// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedServerType is matched by *UnsupportedServerTypeError.
	ErrUnsupportedServerType = errors.New("unsupported server type")

	// ErrInvalidArgument is returned for out-of-range import parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
)

// UnsupportedServerTypeError names the server type no importer handles.
type UnsupportedServerTypeError struct {
	ServerID   string
	ServerType string
}

func (e *UnsupportedServerTypeError) Error() string {
	return fmt.Sprintf("server %s: %s %q", e.ServerID, ErrUnsupportedServerType, e.ServerType)
}

// Is reports whether target is ErrUnsupportedServerType.
func (e *UnsupportedServerTypeError) Is(target error) bool {
	return target == ErrUnsupportedServerType
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
