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
	"context"
	"fmt"
	"io"
)

// This file contains the sync orchestrator: mode validation, the
// constraint precondition for upsert-family modes, chunk iteration, and
// per-chunk result aggregation. Chunks are written strictly in sequence
// because each write mutates shared remote table state and upsert
// correctness depends on deterministic ordering over the sorted key.

// DefaultChunkSize bounds each chunk written to an existing table.
const DefaultChunkSize = 100000

// ChunkResult records the outcome of one chunk's write. Results are
// collected in chunk order; ordinals are 1-based.
type ChunkResult struct {
	ChunkID   int
	ChunkSize int
	Mode      SyncMode
	Success   bool
	Detail    string // failure message, or extra payload on success

	// Populated by the table-creation workflow only.
	ItemID   string
	RowStart int
	RowEnd   int
	StartKey interface{}
	EndKey   interface{}
}

// ProgressFunc receives running progress during multi-chunk writes.
type ProgressFunc func(rowsLoaded, totalRows int)

// SyncStats aggregates the outcome of a multi-chunk run.
type SyncStats struct {
	ChunksTotal  int
	ChunksFailed int
	RowsLoaded   int // rows in successfully written chunks
	RowsFailed   int // rows in chunks whose write failed
}

// Summarize folds per-chunk results into run totals.
func Summarize(results []ChunkResult) SyncStats {
	var s SyncStats
	s.ChunksTotal = len(results)
	for _, r := range results {
		if r.Success {
			s.RowsLoaded += r.ChunkSize
		} else {
			s.ChunksFailed++
			s.RowsFailed += r.ChunkSize
		}
	}
	return s
}

// SyncOptions configures a sync run against an existing hosted table.
type SyncOptions struct {
	Mode           SyncMode
	UpsertColumn   string
	ChunkSize      int
	ItemProperties ItemProperties
	Retry          RetryPolicy
	Progress       ProgressFunc
	FailFast       bool
}

// SyncOption is a functional option for Sync.
type SyncOption func(*SyncOptions)

// WithMode selects the append semantics for the run. Default ModeAppend.
func WithMode(mode SyncMode) SyncOption {
	return func(o *SyncOptions) { o.Mode = mode }
}

// WithUpsertColumn names the unique key column required by the upsert,
// update, and insert modes.
func WithUpsertColumn(column string) SyncOption {
	return func(o *SyncOptions) { o.UpsertColumn = column }
}

// WithChunkSize bounds the number of rows per chunk.
func WithChunkSize(size int) SyncOption {
	return func(o *SyncOptions) { o.ChunkSize = size }
}

// WithItemProperties sets the properties applied to staged TempAssets.
func WithItemProperties(props ItemProperties) SyncOption {
	return func(o *SyncOptions) { o.ItemProperties = props }
}

// WithRetryPolicy overrides the constraint-ensurer poll policy.
func WithRetryPolicy(policy RetryPolicy) SyncOption {
	return func(o *SyncOptions) { o.Retry = policy }
}

// WithProgress installs a progress callback invoked after each chunk.
func WithProgress(fn ProgressFunc) SyncOption {
	return func(o *SyncOptions) { o.Progress = fn }
}

// WithFailFast stops at the first failed chunk instead of continuing and
// reporting per-chunk outcomes.
func WithFailFast(failFast bool) SyncOption {
	return func(o *SyncOptions) { o.FailFast = failFast }
}

func (o *SyncOptions) withDefaults() {
	if o.Mode == "" {
		o.Mode = ModeAppend
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
}

// Sync pushes the dataset into an existing hosted table under the
// requested mode. It returns one ChunkResult per chunk in order; the
// returned error is nil iff every chunk succeeded and no precondition
// failed. A single chunk's write failure is recorded in its result and
// the remaining chunks still run (unless WithFailFast); precondition
// failures abort before any chunk is written.
func Sync(ctx context.Context, ds *Dataset, table TableHandle, store ContentStore, opts ...SyncOption) ([]ChunkResult, error) {
	var o SyncOptions
	for _, opt := range opts {
		opt(&o)
	}
	o.withDefaults()

	if !o.Mode.Valid() {
		return nil, &SyncError{Op: "validate", Err: fmt.Errorf("%w: %q", ErrInvalidMode, string(o.Mode))}
	}
	if ds == nil || ds.NumRows() == 0 {
		return nil, &SyncError{Op: "validate", Err: ErrEmptyDataset}
	}
	if table == nil || store == nil {
		return nil, &SyncError{Op: "validate", Err: fmt.Errorf("table handle and content store are required")}
	}

	var sortKeys []string
	switch {
	case o.Mode.Keyed():
		if o.UpsertColumn == "" {
			return nil, &SyncError{Op: "validate", Err: ErrMissingKeyColumn}
		}
		if ds.ColumnIndex(o.UpsertColumn) < 0 {
			return nil, &SyncError{Op: "validate",
				Err: fmt.Errorf("%w: column %q not in dataset", ErrMissingKeyColumn, o.UpsertColumn)}
		}
		ensurer := ConstraintEnsurer{Policy: o.Retry}
		if err := ensurer.Ensure(ctx, table, o.UpsertColumn); err != nil {
			return nil, err
		}
		sortKeys = []string{o.UpsertColumn}
	case o.Mode == ModeOverwrite:
		if err := table.Truncate(ctx); err != nil {
			return nil, &SyncError{Op: "truncate", Err: err}
		}
	}

	chunker, err := NewChunker(ds, o.ChunkSize, sortKeys...)
	if err != nil {
		return nil, err
	}

	writer := &tableWriter{table: table, store: store, props: o.ItemProperties}
	flags := flagsForMode(o.Mode, o.UpsertColumn)
	total := ds.NumRows()

	var results []ChunkResult
	failed := 0
	loaded := 0
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, err
		}

		res := ChunkResult{
			ChunkID:   chunk.Ordinal,
			ChunkSize: chunk.Data.NumRows(),
			Mode:      o.Mode,
		}
		if werr := writer.write(ctx, chunk.Data, flags); werr != nil {
			res.Detail = werr.Error()
			failed++
			results = append(results, res)
			if o.FailFast || ctx.Err() != nil {
				return results, &SyncError{Op: "write_chunk", Err: werr}
			}
			continue
		}
		res.Success = true
		loaded += res.ChunkSize
		results = append(results, res)
		if o.Progress != nil {
			o.Progress(loaded, total)
		}
	}

	if failed > 0 {
		return results, &SyncError{Op: "sync",
			Err: fmt.Errorf("%d of %d chunks failed", failed, len(results))}
	}
	return results, nil
}
