// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built instance and messages in the API's VALIDATION_ERROR format.
//
//	type ImportRequest struct {
//	    ServerID string `json:"server_id" validate:"required"`
//	    DaysBack int    `json:"days_back" validate:"min=1,max=365"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation
