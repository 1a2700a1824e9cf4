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

// ReadTable reads the full contents of a hosted table into a Dataset.
func ReadTable(ctx context.Context, store ContentStore, itemID string) (*Dataset, error) {
	table, err := store.Table(ctx, itemID)
	if err != nil {
		return nil, &SyncError{Op: "resolve_item", Err: err}
	}
	cols, rows, err := table.Query(ctx)
	if err != nil {
		return nil, &SyncError{Op: "query", Err: err}
	}
	ds, err := NewDataset(cols)
	if err != nil {
		return nil, &SyncError{Op: "query", Err: err}
	}
	for _, row := range rows {
		if err := ds.AppendRow(row...); err != nil {
			return nil, &SyncError{Op: "query", Err: err}
		}
	}
	return ds, nil
}
