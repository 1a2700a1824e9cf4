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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSync_InvalidMode tests rejection of unsupported modes
func TestSync_InvalidMode(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	_, err := Sync(context.Background(), testDataset(3), table, store, WithMode("replace"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMode))

	// create is a workflow of its own, not a sync mode
	_, err = Sync(context.Background(), testDataset(3), table, store, WithMode(ModeCreate))
	assert.True(t, errors.Is(err, ErrInvalidMode))
}

// TestSync_EmptyDataset tests that nothing remote happens on empty input
func TestSync_EmptyDataset(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	_, err := Sync(context.Background(), nil, table, store)
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	ds, derr := NewDataset([]Column{{Name: "k", Type: FieldInteger}})
	require.NoError(t, derr)
	_, err = Sync(context.Background(), ds, table, store)
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	truncate, appendN, indexes, addIndex := table.counts()
	assert.Zero(t, truncate+appendN+indexes+addIndex, "no remote calls on empty input")
	assert.Empty(t, store.uploadedPaths())
}

// TestSync_MissingKeyColumn tests the upsert-family precondition
func TestSync_MissingKeyColumn(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	for _, mode := range []SyncMode{ModeUpsert, ModeUpdate, ModeInsert} {
		_, err := Sync(context.Background(), testDataset(3), table, store, WithMode(mode))
		assert.True(t, errors.Is(err, ErrMissingKeyColumn), "mode %s", mode)
	}

	// A named key that isn't in the dataset is equally fatal
	_, err := Sync(context.Background(), testDataset(3), table, store,
		WithMode(ModeUpsert), WithUpsertColumn("no_such"))
	assert.True(t, errors.Is(err, ErrMissingKeyColumn))

	_, appendN, _, _ := table.counts()
	assert.Zero(t, appendN, "validation failures precede chunking")
}

// TestSync_Append tests a plain multi-chunk append
func TestSync_Append(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	var progress [][2]int
	results, err := Sync(context.Background(), testDataset(25), table, store,
		WithChunkSize(10),
		WithProgress(func(loaded, total int) { progress = append(progress, [2]int{loaded, total}) }))
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, i+1, res.ChunkID)
		assert.Equal(t, ModeAppend, res.Mode)
		assert.True(t, res.Success)
	}
	assert.Equal(t, []int{10, 10, 5}, []int{results[0].ChunkSize, results[1].ChunkSize, results[2].ChunkSize})

	assert.Equal(t, [][2]int{{10, 25}, {20, 25}, {25, 25}}, progress)

	truncate, appendN, _, _ := table.counts()
	assert.Zero(t, truncate)
	assert.Equal(t, 3, appendN)

	// Append mode sends no upsert flags
	for _, req := range table.appendRequests() {
		assert.False(t, req.Upsert)
		assert.Empty(t, req.UpsertMatchingField)
	}

	// Every staged TempAsset is released
	assert.Len(t, store.deletedAssets(), 3)
}

// TestSync_Overwrite tests truncate-then-append semantics
func TestSync_Overwrite(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	results, err := Sync(context.Background(), testDataset(8), table, store,
		WithMode(ModeOverwrite), WithChunkSize(5))
	require.NoError(t, err)
	require.Len(t, results, 2)

	truncate, appendN, _, _ := table.counts()
	assert.Equal(t, 1, truncate, "one truncate before the first chunk")
	assert.Equal(t, 2, appendN)
}

// TestSync_OverwriteTruncateFailure tests that a failed truncate aborts
// before any upload
func TestSync_OverwriteTruncateFailure(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	table.truncateErr = errors.New("not authorized")
	store := newMockStore(table)

	results, err := Sync(context.Background(), testDataset(8), table, store, WithMode(ModeOverwrite))
	require.Error(t, err)
	assert.Nil(t, results)
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "truncate", syncErr.Op)
	assert.Empty(t, store.uploadedPaths())
}

// TestSync_Upsert tests the constraint precondition, key sorting, and the
// flags sent with each chunk
func TestSync_Upsert(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	ds := testDataset(10) // keys inserted descending
	results, err := Sync(context.Background(), ds, table, store,
		WithMode(ModeUpsert), WithUpsertColumn("site_id"), WithChunkSize(4),
		WithRetryPolicy(noSleepPolicy(2)))
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Constraint established before writes
	_, _, _, addIndex := table.counts()
	assert.Equal(t, 1, addIndex)

	// Dataset re-ordered ascending by the key before chunking
	assert.Equal(t, int64(1), ds.Value(0, 0))
	assert.Equal(t, int64(10), ds.Value(9, 0))

	for _, req := range table.appendRequests() {
		assert.True(t, req.Upsert)
		assert.False(t, req.SkipInserts)
		assert.False(t, req.SkipUpdates)
		assert.Equal(t, "site_id", req.UpsertMatchingField)
	}
}

// TestSync_UpdateAndInsertFlags tests the skip flags of the narrower modes
func TestSync_UpdateAndInsertFlags(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	table.indexes = []IndexInfo{{Name: "ux", Fields: "site_id", IsUnique: true}}
	store := newMockStore(table)

	_, err := Sync(context.Background(), testDataset(3), table, store,
		WithMode(ModeUpdate), WithUpsertColumn("site_id"))
	require.NoError(t, err)

	_, err = Sync(context.Background(), testDataset(3), table, store,
		WithMode(ModeInsert), WithUpsertColumn("site_id"))
	require.NoError(t, err)

	reqs := table.appendRequests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].SkipInserts)
	assert.False(t, reqs[0].SkipUpdates)
	assert.False(t, reqs[1].SkipInserts)
	assert.True(t, reqs[1].SkipUpdates)
}

// TestSync_ConstraintFailureAborts tests that an unsatisfiable constraint
// stops the run before any chunk is written
func TestSync_ConstraintFailureAborts(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	table.indexVisibleAfter = 100
	store := newMockStore(table)

	results, err := Sync(context.Background(), testDataset(10), table, store,
		WithMode(ModeUpsert), WithUpsertColumn("site_id"),
		WithRetryPolicy(noSleepPolicy(2)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstraintUnavailable))
	assert.Nil(t, results)
	assert.Empty(t, store.uploadedPaths())
}

// TestSync_ChunkFailureContinues tests continue-and-report on a single
// failed chunk
func TestSync_ChunkFailureContinues(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	table.appendErrs = []error{nil, errors.New("job failed"), nil}
	store := newMockStore(table)

	results, err := Sync(context.Background(), testDataset(25), table, store, WithChunkSize(10))
	require.Error(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Detail, "job failed")
	assert.True(t, results[2].Success)

	// All three chunks attempted, all three assets released
	_, appendN, _, _ := table.counts()
	assert.Equal(t, 3, appendN)
	assert.Len(t, store.deletedAssets(), 3)
}

// TestSync_FailFast tests stopping at the first failed chunk
func TestSync_FailFast(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	table.appendErrs = []error{errors.New("job failed")}
	store := newMockStore(table)

	results, err := Sync(context.Background(), testDataset(25), table, store,
		WithChunkSize(10), WithFailFast(true))
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	_, appendN, _, _ := table.counts()
	assert.Equal(t, 1, appendN, "remaining chunks skipped")
}

// TestSummarize tests result aggregation
func TestSummarize(t *testing.T) {
	stats := Summarize([]ChunkResult{
		{ChunkSize: 10, Success: true},
		{ChunkSize: 10, Success: false},
		{ChunkSize: 5, Success: true},
	})
	assert.Equal(t, SyncStats{ChunksTotal: 3, ChunksFailed: 1, RowsLoaded: 15, RowsFailed: 10}, stats)

	assert.Equal(t, SyncStats{}, Summarize(nil))
}

// TestSync_NilHandles tests the required-argument check
func TestSync_NilHandles(t *testing.T) {
	table := newMockTable("item-1", "my_table")
	store := newMockStore(table)

	_, err := Sync(context.Background(), testDataset(3), nil, store)
	assert.Error(t, err)

	_, err = Sync(context.Background(), testDataset(3), table, nil)
	assert.Error(t, err)
}
