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

package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/portalsync"
)

// Table implements portalsync.TableHandle against one layer or table of a
// hosted feature service.
type Table struct {
	client   *Client
	itemID   string
	title    string
	layerURL string // {serviceURL}/{layerID}
}

// ItemID returns the identifier of the hosting item.
func (t *Table) ItemID() string { return t.itemID }

// Title returns the display title of the hosting item.
func (t *Table) Title() string { return t.title }

// adminURL rewrites the layer URL onto the service admin endpoint, where
// truncate and addToDefinition live.
func (t *Table) adminURL(op string) string {
	admin := strings.Replace(t.layerURL, "/rest/services/", "/rest/admin/services/", 1)
	return admin + "/" + op
}

// Truncate removes all rows from the table. Destructive and irreversible
// within the sync workflow.
func (t *Table) Truncate(ctx context.Context) error {
	truncateURL := t.adminURL("truncate")
	var out struct {
		Success   bool   `json:"success"`
		StatusURL string `json:"statusUrl"`
	}
	if err := t.client.postForm(ctx, truncateURL, url.Values{"async": {"false"}}, &out); err != nil {
		return err
	}
	if out.StatusURL != "" {
		return t.client.waitForJob(ctx, out.StatusURL)
	}
	if !out.Success {
		return &ClientError{Op: "truncate", URL: truncateURL, Err: fmt.Errorf("truncate was not applied")}
	}
	return nil
}

// Append applies a staged asset to the table under the request's flags.
// The portal runs appends as async jobs; the call blocks until the job
// completes or fails.
func (t *Table) Append(ctx context.Context, req portalsync.AppendRequest) error {
	appendURL := t.layerURL + "/append"

	sourceInfo, err := json.Marshal(req.SourceInfo)
	if err != nil {
		return &ClientError{Op: "append", URL: appendURL, Err: err}
	}
	fields, err := json.Marshal(req.AppendFields)
	if err != nil {
		return &ClientError{Op: "append", URL: appendURL, Err: err}
	}

	form := url.Values{
		"appendItemId":        {req.AssetID},
		"appendUploadFormat":  {req.UploadFormat},
		"appendSourceInfo":    {string(sourceInfo)},
		"appendFields":        {string(fields)},
		"upserts":             {strconv.FormatBool(req.Upsert)},
		"skipInserts":         {strconv.FormatBool(req.SkipInserts)},
		"skipUpdates":         {strconv.FormatBool(req.SkipUpdates)},
		"useGlobalIds":        {strconv.FormatBool(req.UseGlobalIDs)},
		"updateGeometry":      {strconv.FormatBool(req.UpdateGeometry)},
		"rollbackOnFailure":   {strconv.FormatBool(req.Rollback)},
		"upsertMatchingField": {req.UpsertMatchingField},
	}

	var out struct {
		StatusURL string `json:"statusUrl"`
		Success   bool   `json:"success"`
	}
	if err := t.client.postForm(ctx, appendURL, form, &out); err != nil {
		return err
	}
	if out.StatusURL != "" {
		return t.client.waitForJob(ctx, out.StatusURL)
	}
	if !out.Success {
		return &ClientError{Op: "append", URL: appendURL, Err: fmt.Errorf("append was not applied")}
	}
	return nil
}

// layerDefinition is the subset of the layer metadata the sync consumes.
type layerDefinition struct {
	Indexes []struct {
		Name        string `json:"name"`
		Fields      string `json:"fields"`
		IsUnique    bool   `json:"isUnique"`
		Description string `json:"description"`
	} `json:"indexes"`
}

// Indexes returns the table's current index metadata.
func (t *Table) Indexes(ctx context.Context) ([]portalsync.IndexInfo, error) {
	var def layerDefinition
	if err := t.client.postForm(ctx, t.layerURL, nil, &def); err != nil {
		return nil, err
	}
	indexes := make([]portalsync.IndexInfo, 0, len(def.Indexes))
	for _, idx := range def.Indexes {
		indexes = append(indexes, portalsync.IndexInfo{
			Name:        idx.Name,
			Fields:      idx.Fields,
			IsUnique:    idx.IsUnique,
			Description: idx.Description,
		})
	}
	return indexes, nil
}

// AddIndex requests a new index on the table definition. The index
// becomes visible in Indexes once the portal finishes building it.
func (t *Table) AddIndex(ctx context.Context, idx portalsync.IndexInfo) error {
	addURL := t.adminURL("addToDefinition")
	definition := map[string]interface{}{
		"indexes": []map[string]interface{}{{
			"name":        idx.Name,
			"fields":      idx.Fields,
			"isUnique":    idx.IsUnique,
			"description": idx.Description,
		}},
	}
	encoded, err := json.Marshal(definition)
	if err != nil {
		return &ClientError{Op: "add_index", URL: addURL, Err: err}
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := t.client.postForm(ctx, addURL, url.Values{"addToDefinition": {string(encoded)}}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &ClientError{Op: "add_index", URL: addURL, Err: fmt.Errorf("definition was not updated")}
	}
	return nil
}

// Query reads the table's full contents as typed columns and rows.
func (t *Table) Query(ctx context.Context) ([]portalsync.Column, [][]interface{}, error) {
	queryURL := t.layerURL + "/query"
	form := url.Values{
		"where":          {"1=1"},
		"outFields":      {"*"},
		"returnGeometry": {"false"},
	}

	var out struct {
		Fields []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
		Features []struct {
			Attributes map[string]interface{} `json:"attributes"`
		} `json:"features"`
	}
	if err := t.client.postForm(ctx, queryURL, form, &out); err != nil {
		return nil, nil, err
	}
	if len(out.Fields) == 0 {
		return nil, nil, &ClientError{Op: "query", URL: queryURL, Err: fmt.Errorf("no fields returned")}
	}

	cols := make([]portalsync.Column, len(out.Fields))
	for i, f := range out.Fields {
		cols[i] = portalsync.Column{Name: f.Name, Type: fieldTypeFor(f.Type)}
	}

	rows := make([][]interface{}, 0, len(out.Features))
	for _, feat := range out.Features {
		row := make([]interface{}, len(cols))
		for i, col := range cols {
			row[i] = convertAttribute(feat.Attributes[col.Name], col.Type)
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

// fieldTypeFor maps the portal's esri field types onto Dataset types.
func fieldTypeFor(esriType string) portalsync.FieldType {
	switch esriType {
	case "esriFieldTypeInteger", "esriFieldTypeSmallInteger", "esriFieldTypeOID":
		return portalsync.FieldInteger
	case "esriFieldTypeDouble", "esriFieldTypeSingle":
		return portalsync.FieldFloat
	case "esriFieldTypeDate":
		return portalsync.FieldTime
	default:
		return portalsync.FieldString
	}
}

// convertAttribute coerces a decoded JSON attribute to the column's
// logical type. Dates arrive as epoch milliseconds.
func convertAttribute(v interface{}, t portalsync.FieldType) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case portalsync.FieldInteger:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	case portalsync.FieldTime:
		if f, ok := v.(float64); ok {
			return time.UnixMilli(int64(f)).UTC()
		}
	}
	return v
}
