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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// appendFlags is the mode-derived flag set passed to the remote append
// operation for one chunk.
type appendFlags struct {
	upsert        bool
	skipInserts   bool
	skipUpdates   bool
	matchingField string
}

// flagsForMode maps a sync mode onto the remote append flags.
func flagsForMode(mode SyncMode, upsertColumn string) appendFlags {
	f := appendFlags{}
	if mode.Keyed() {
		f.upsert = true
		f.matchingField = upsertColumn
		if mode == ModeUpdate {
			f.skipInserts = true
		}
		if mode == ModeInsert {
			f.skipUpdates = true
		}
	}
	return f
}

// tableWriter writes one chunk at a time into a remote hosted table by
// staging it as a TempAsset on the content store. The TempAsset and the
// local staging file are released on every exit path; cleanup failures
// are swallowed, so the guarantee is best-effort rather than strict.
type tableWriter struct {
	table TableHandle
	store ContentStore
	props ItemProperties
}

// write serializes the chunk to a temporary CSV, uploads it, requests a
// schema analysis, and invokes the remote append with the given flags.
func (w *tableWriter) write(ctx context.Context, chunk *Dataset, flags appendFlags) (err error) {
	path, err := stageCSV(chunk)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	props := w.props
	if props.Title == "" {
		props.Title = path
	}
	asset, err := w.store.Upload(ctx, path, props)
	if err != nil {
		return &WriterError{Op: "upload", Err: err}
	}
	defer func() {
		// TempAsset must not outlive the chunk, whatever the outcome.
		_ = w.store.Delete(context.WithoutCancel(ctx), asset.ID)
	}()

	sourceInfo, err := w.store.Analyze(ctx, asset.ID, "csv")
	if err != nil {
		return &WriterError{Op: "analyze", Err: err}
	}

	req := AppendRequest{
		AssetID:             asset.ID,
		UploadFormat:        "csv",
		SourceInfo:          sourceInfo,
		Upsert:              flags.upsert,
		SkipInserts:         flags.skipInserts,
		SkipUpdates:         flags.skipUpdates,
		UpsertMatchingField: flags.matchingField,
		AppendFields:        chunk.ColumnNames(),
		Rollback:            true,
	}
	if err := w.table.Append(ctx, req); err != nil {
		return &WriterError{Op: "append", Err: err}
	}
	return nil
}

// stageCSV serializes a chunk to a uniquely named temporary CSV file and
// returns its path. The caller removes the file.
func stageCSV(chunk *Dataset) (string, error) {
	f, err := os.CreateTemp("", "portalsync-*.csv")
	if err != nil {
		return "", &WriterError{Op: "create_temp", Err: err}
	}
	path := f.Name()

	cw := csv.NewWriter(f)
	if err := cw.Write(chunk.ColumnNames()); err != nil {
		f.Close()
		os.Remove(path)
		return "", &WriterError{Op: "stage_csv", Err: err}
	}
	cols := chunk.Columns()
	row := make([]string, len(cols))
	for ri := 0; ri < chunk.NumRows(); ri++ {
		for ci := range cols {
			row[ci] = formatCSVValue(chunk.Value(ri, ci))
		}
		if err := cw.Write(row); err != nil {
			f.Close()
			os.Remove(path)
			return "", &WriterError{Op: "stage_csv", Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		os.Remove(path)
		return "", &WriterError{Op: "stage_csv", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", &WriterError{Op: "stage_csv", Err: err}
	}
	return path, nil
}

// formatCSVValue renders a cell for the CSV transfer format. Nil becomes
// an empty field; times use RFC 3339 so the remote analyzer recognizes
// them as dates.
func formatCSVValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
