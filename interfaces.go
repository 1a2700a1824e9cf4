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
)

// This file contains the capability interfaces the sync workflow consumes.
// The remote platform's SDK objects are abstracted behind two small
// interfaces, TableHandle and ContentStore, so any hosted-table service or
// a test double can satisfy them. The portal subpackage provides the REST
// implementations.

// SyncMode selects which flag combination is sent to the remote append
// operation and whether a uniqueness constraint precondition is required.
type SyncMode string

const (
	// ModeAppend inserts all rows without key matching.
	ModeAppend SyncMode = "append"
	// ModeOverwrite truncates the target table before appending.
	ModeOverwrite SyncMode = "overwrite"
	// ModeUpsert inserts rows with new keys and updates rows with matching keys.
	ModeUpsert SyncMode = "upsert"
	// ModeUpdate only updates rows with matching keys, skipping inserts.
	ModeUpdate SyncMode = "update"
	// ModeInsert only inserts rows with new keys, skipping updates.
	ModeInsert SyncMode = "insert"
)

// Valid reports whether m is one of the supported sync modes.
func (m SyncMode) Valid() bool {
	switch m {
	case ModeAppend, ModeOverwrite, ModeUpsert, ModeUpdate, ModeInsert:
		return true
	}
	return false
}

// Keyed reports whether m requires a unique key column on the target.
func (m SyncMode) Keyed() bool {
	switch m {
	case ModeUpsert, ModeUpdate, ModeInsert:
		return true
	}
	return false
}

// IndexInfo describes one index on a remote hosted table.
type IndexInfo struct {
	Name        string
	Fields      string // comma-separated field names
	IsUnique    bool
	Description string
}

// AppendRequest carries the parameters of a remote append call against a
// staged asset.
type AppendRequest struct {
	AssetID             string                 // staged TempAsset to append from
	UploadFormat        string                 // transfer format of the asset, e.g. "csv"
	SourceInfo          map[string]interface{} // publish parameters from ContentStore.Analyze
	Upsert              bool
	SkipInserts         bool
	SkipUpdates         bool
	UpsertMatchingField string
	AppendFields        []string // full column list of the source dataset
	UseGlobalIDs        bool
	UpdateGeometry      bool
	Rollback            bool
}

// TableHandle is an opaque reference to a remote hosted table. It is
// resolved once per orchestration run and reused across chunks.
type TableHandle interface {
	// ItemID returns the stable identifier of the hosting item.
	ItemID() string
	// Title returns the display title of the hosting item.
	Title() string
	// Truncate removes all rows from the table. Destructive.
	Truncate(ctx context.Context) error
	// Append applies staged data to the table under the given flags.
	Append(ctx context.Context, req AppendRequest) error
	// Indexes returns the table's current index metadata.
	Indexes(ctx context.Context) ([]IndexInfo, error)
	// AddIndex requests a new index on the table definition. The index
	// may not be visible in Indexes immediately.
	AddIndex(ctx context.Context, idx IndexInfo) error
	// Query reads the table's full contents.
	Query(ctx context.Context) ([]Column, [][]interface{}, error)
}

// ItemProperties describes a content item created on the remote store.
// It is an explicit per-call value; callers construct a fresh one for each
// operation rather than sharing a mutable default.
type ItemProperties struct {
	Title       string
	Type        string
	Tags        []string
	Snippet     string
	Description string
}

// Asset identifies an uploaded content item, typically a TempAsset staged
// for an append or publish call.
type Asset struct {
	ID    string
	Title string
}

// ContentStore is the remote platform's content-management surface
// consumed by the sync workflow. Authentication is the caller's concern;
// implementations carry their own session state.
type ContentStore interface {
	// Upload stages a local file as a content item and returns its handle.
	Upload(ctx context.Context, localPath string, props ItemProperties) (Asset, error)
	// Analyze runs schema/type analysis on a staged asset and returns the
	// publish parameters to feed into an append or publish call.
	Analyze(ctx context.Context, assetID, fileType string) (map[string]interface{}, error)
	// Delete removes a content item.
	Delete(ctx context.Context, assetID string) error
	// Search finds content items matching a portal search query.
	Search(ctx context.Context, query string) ([]Asset, error)
	// CheckNameAvailable reports whether a service name is free to use.
	CheckNameAvailable(ctx context.Context, name string) (bool, error)
	// Table resolves an item identifier to its hosted-table handle.
	Table(ctx context.Context, itemID string) (TableHandle, error)
	// Publish turns a staged asset into a new hosted table.
	Publish(ctx context.Context, assetID string, props ItemProperties) (TableHandle, error)
}
