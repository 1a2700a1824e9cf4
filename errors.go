//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of PortalSync.
//
// PortalSync is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// PortalSync is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with PortalSync. If not, see https://www.gnu.org/licenses/.

package portalsync

import (
	"errors"
	"fmt"
)

// Package portalsync error kinds. Every public operation converts internal
// failures into one of these sentinel kinds (wrapped with operation
// context); nothing panics across the public boundary. Use errors.Is to
// classify a returned error.

var (
	// ErrInvalidMode is returned when a sync mode outside the supported
	// set (append, overwrite, upsert, update, insert) is requested.
	ErrInvalidMode = errors.New("invalid sync mode")

	// ErrEmptyDataset is returned when a workflow is invoked with a nil or
	// zero-row dataset.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrMissingKeyColumn is returned when an upsert-family mode is
	// requested without a unique key column.
	ErrMissingKeyColumn = errors.New("upsert, update, and insert modes require a unique key column")

	// ErrConstraintUnavailable is returned when a unique index could not be
	// established on the target table within the retry budget.
	ErrConstraintUnavailable = errors.New("unique constraint unavailable on target table")

	// ErrNameUnavailable is returned when a requested service name collides
	// with an existing remote table that does not match the target.
	ErrNameUnavailable = errors.New("service name is not available")
)

// SyncError wraps a failure from the sync workflow with the operation that
// produced it.
type SyncError struct {
	Op  string // Operation that failed (e.g., "validate", "truncate", "chunk", "write_chunk")
	Err error  // Underlying error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("portal sync %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// WriterError wraps a failure from the per-chunk remote table writer.
type WriterError struct {
	Op  string // Operation that failed (e.g., "stage_csv", "upload", "analyze", "append")
	Err error  // Underlying error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("table writer %s: %v", e.Op, e.Err)
}

func (e *WriterError) Unwrap() error {
	return e.Err
}
