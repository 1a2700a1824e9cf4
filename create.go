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
	"os"
)

// ModeCreate is reported in the ChunkResult of the chunk that published a
// brand-new hosted table. It is not accepted by Sync.
const ModeCreate SyncMode = "create"

// DefaultCreateChunkSize bounds each chunk of the table-creation workflow.
const DefaultCreateChunkSize = 200000

// CreateOptions configures CreateTable.
type CreateOptions struct {
	ItemID         string // reuse an existing item instead of publishing
	KeyColumn      string
	ChunkSize      int
	ItemProperties ItemProperties
	Retry          RetryPolicy
	Progress       ProgressFunc
}

// CreateOption is a functional option for CreateTable.
type CreateOption func(*CreateOptions)

// WithCreateItemID targets an existing hosted table instead of publishing
// a new one; the name argument is ignored for resolution.
func WithCreateItemID(itemID string) CreateOption {
	return func(o *CreateOptions) { o.ItemID = itemID }
}

// WithCreateKeyColumn names the unique key column. When set, chunks after
// the first are applied in upsert mode against that key.
func WithCreateKeyColumn(column string) CreateOption {
	return func(o *CreateOptions) { o.KeyColumn = column }
}

// WithCreateChunkSize bounds the number of rows per chunk.
func WithCreateChunkSize(size int) CreateOption {
	return func(o *CreateOptions) { o.ChunkSize = size }
}

// WithCreateProperties sets the item properties of the published table.
func WithCreateProperties(props ItemProperties) CreateOption {
	return func(o *CreateOptions) { o.ItemProperties = props }
}

// WithCreateRetryPolicy overrides the constraint-ensurer poll policy.
func WithCreateRetryPolicy(policy RetryPolicy) CreateOption {
	return func(o *CreateOptions) { o.Retry = policy }
}

// WithCreateProgress installs a progress callback invoked after each chunk.
func WithCreateProgress(fn ProgressFunc) CreateOption {
	return func(o *CreateOptions) { o.Progress = fn }
}

// CreateTable publishes the dataset as a hosted table named name,
// chunking large datasets: the first chunk publishes the table (or an
// existing table with a matching title is reused), the unique key
// constraint is established against it, and every subsequent chunk is
// appended in upsert mode (plain append when no key column is given).
// One ChunkResult is returned per chunk, carrying the covered row and key
// ranges. The returned handle references the target table.
func CreateTable(ctx context.Context, ds *Dataset, store ContentStore, name string, opts ...CreateOption) (TableHandle, []ChunkResult, error) {
	var o CreateOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultCreateChunkSize
	}

	if ds == nil || ds.NumRows() == 0 {
		return nil, nil, &SyncError{Op: "validate", Err: ErrEmptyDataset}
	}
	if store == nil {
		return nil, nil, &SyncError{Op: "validate", Err: fmt.Errorf("content store is required")}
	}
	if name == "" && o.ItemID == "" {
		return nil, nil, &SyncError{Op: "validate", Err: fmt.Errorf("an item ID or service name is required")}
	}
	if o.KeyColumn != "" && ds.ColumnIndex(o.KeyColumn) < 0 {
		return nil, nil, &SyncError{Op: "validate",
			Err: fmt.Errorf("%w: column %q not in dataset", ErrMissingKeyColumn, o.KeyColumn)}
	}

	serviceName := name
	if name != "" {
		normalized, err := NormalizeServiceName(name)
		if err != nil {
			return nil, nil, &SyncError{Op: "normalize_name", Err: err}
		}
		serviceName = normalized
	}

	table, err := resolveTarget(ctx, store, serviceName, o.ItemID)
	if err != nil {
		return nil, nil, err
	}

	mode := ModeAppend
	var sortKeys []string
	if o.KeyColumn != "" {
		mode = ModeUpsert
		sortKeys = []string{o.KeyColumn}
	}

	chunker, err := NewChunker(ds, o.ChunkSize, sortKeys...)
	if err != nil {
		return nil, nil, err
	}

	total := ds.NumRows()
	keyIdx := -1
	if o.KeyColumn != "" {
		keyIdx = ds.ColumnIndex(o.KeyColumn)
	}

	var results []ChunkResult
	failed := 0
	loaded := 0
	rowPos := 0
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table, results, err
		}

		n := chunk.Data.NumRows()
		res := ChunkResult{
			ChunkID:   chunk.Ordinal,
			ChunkSize: n,
			Mode:      mode,
			RowStart:  rowPos + 1,
			RowEnd:    rowPos + n,
		}
		rowPos += n
		if keyIdx >= 0 {
			// Chunks are sorted ascending by the key, so the range is the
			// first and last cell.
			res.StartKey = chunk.Data.Value(0, keyIdx)
			res.EndKey = chunk.Data.Value(n-1, keyIdx)
		}

		if table == nil {
			table, err = publishTable(ctx, store, chunk.Data, serviceName, o)
			if err != nil {
				results = append(results, res)
				return nil, results, err
			}
			res.Mode = ModeCreate
			res.Success = true
			res.ItemID = table.ItemID()
			loaded += n
		} else {
			if chunk.Ordinal == 1 && mode.Keyed() {
				// Reusing an existing table: the constraint precondition
				// still applies before the first upsert.
				ensurer := ConstraintEnsurer{Policy: o.Retry}
				if err := ensurer.Ensure(ctx, table, o.KeyColumn); err != nil {
					return table, results, err
				}
			}
			writer := &tableWriter{table: table, store: store, props: o.ItemProperties}
			if werr := writer.write(ctx, chunk.Data, flagsForMode(mode, o.KeyColumn)); werr != nil {
				res.Detail = werr.Error()
				failed++
				res.ItemID = table.ItemID()
				results = append(results, res)
				continue
			}
			res.Success = true
			res.ItemID = table.ItemID()
			loaded += n
		}
		results = append(results, res)
		if o.Progress != nil {
			o.Progress(loaded, total)
		}
	}

	if failed > 0 {
		return table, results, &SyncError{Op: "create_table",
			Err: fmt.Errorf("%d of %d chunks failed", failed, len(results))}
	}
	return table, results, nil
}

// resolveTarget finds the destination table: by item ID when given, else
// by exact title match among existing services. A nil handle with nil
// error means a new table must be published, after confirming the service
// name is free.
func resolveTarget(ctx context.Context, store ContentStore, serviceName, itemID string) (TableHandle, error) {
	if itemID != "" {
		table, err := store.Table(ctx, itemID)
		if err != nil {
			return nil, &SyncError{Op: "resolve_item", Err: err}
		}
		return table, nil
	}

	query := fmt.Sprintf(`title:%s AND type:"Feature Service"`, serviceName)
	items, err := store.Search(ctx, query)
	if err != nil {
		return nil, &SyncError{Op: "search", Err: err}
	}
	for _, item := range items {
		if item.Title == serviceName {
			table, err := store.Table(ctx, item.ID)
			if err != nil {
				return nil, &SyncError{Op: "resolve_item", Err: err}
			}
			return table, nil
		}
	}

	available, err := store.CheckNameAvailable(ctx, serviceName)
	if err != nil {
		return nil, &SyncError{Op: "check_name", Err: err}
	}
	if !available {
		return nil, &SyncError{Op: "check_name",
			Err: fmt.Errorf("%w: %q", ErrNameUnavailable, serviceName)}
	}
	return nil, nil
}

// publishTable uploads the first chunk as a CSV asset and publishes it as
// a new hosted table, then establishes the unique key constraint when a
// key column is configured. The uploaded asset backs the published
// service and is only deleted when publishing fails.
func publishTable(ctx context.Context, store ContentStore, chunk *Dataset, serviceName string, o CreateOptions) (TableHandle, error) {
	path, err := stageCSV(chunk)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	props := o.ItemProperties
	props.Title = serviceName
	asset, err := store.Upload(ctx, path, props)
	if err != nil {
		return nil, &SyncError{Op: "upload", Err: err}
	}

	table, err := store.Publish(ctx, asset.ID, props)
	if err != nil {
		_ = store.Delete(context.WithoutCancel(ctx), asset.ID)
		return nil, &SyncError{Op: "publish", Err: err}
	}

	if o.KeyColumn != "" {
		ensurer := ConstraintEnsurer{Policy: o.Retry}
		if err := ensurer.Ensure(ctx, table, o.KeyColumn); err != nil {
			return nil, err
		}
	}
	return table, nil
}
