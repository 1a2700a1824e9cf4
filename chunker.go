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
	"fmt"
	"io"
)

// Chunk is a contiguous, bounded-size partition of a dataset's rows.
// Ordinals are 1-based and assigned in production order.
type Chunk struct {
	Ordinal int
	Data    *Dataset
}

// Chunker splits a dataset into bounded-size, optionally key-sorted
// partitions. Chunks partition the dataset exactly: no overlap, no gaps,
// every chunk holds chunkSize rows except the final remainder, and no
// trailing empty chunk is produced. The sequence is lazy and single-pass.
type Chunker struct {
	ds      *Dataset
	size    int
	pos     int
	ordinal int
}

// NewChunker creates a Chunker over the dataset. When sortKeys are given,
// the dataset's rows are stably sorted ascending by those keys before
// slicing, so chunk boundaries are reproducible for a given key ordering.
// Sorting re-orders the caller's dataset in place.
func NewChunker(ds *Dataset, chunkSize int, sortKeys ...string) (*Chunker, error) {
	if ds == nil || ds.NumRows() == 0 {
		return nil, &SyncError{Op: "chunk", Err: ErrEmptyDataset}
	}
	if chunkSize <= 0 {
		return nil, &SyncError{Op: "chunk", Err: fmt.Errorf("chunk size must be positive, got %d", chunkSize)}
	}
	if len(sortKeys) > 0 {
		if err := ds.SortBy(sortKeys...); err != nil {
			return nil, &SyncError{Op: "chunk", Err: err}
		}
	}
	return &Chunker{ds: ds, size: chunkSize}, nil
}

// Next returns the next chunk, or io.EOF when the dataset is exhausted.
func (c *Chunker) Next() (*Chunk, error) {
	if c.pos >= c.ds.NumRows() {
		return nil, io.EOF
	}
	hi := c.pos + c.size
	if hi > c.ds.NumRows() {
		hi = c.ds.NumRows()
	}
	c.ordinal++
	chunk := &Chunk{Ordinal: c.ordinal, Data: c.ds.Slice(c.pos, hi)}
	c.pos = hi
	return chunk, nil
}

// Count returns how many chunks the full pass will produce.
func (c *Chunker) Count() int {
	n := c.ds.NumRows() / c.size
	if c.ds.NumRows()%c.size > 0 {
		n++
	}
	return n
}
