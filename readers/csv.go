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

package readers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/portalsync"
)

// Package readers loads portalsync Datasets from external sources: local
// CSV and Parquet files, S3 objects, PostgreSQL queries, and MongoDB
// collections. Every loader materializes the full dataset in memory; the
// sync workflow chunks it afterwards.

// CSVReaderError wraps structured error information for the CSV loader.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVOptions configures CSV parsing and type inference.
type CSVOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
	TypeHints        map[string]portalsync.FieldType // per-column overrides for inference
	TimeFormats      []string                        // layouts tried for Time inference
}

// CSVOption allows functional customization of the CSV loader.
type CSVOption func(*CSVOptions)

func WithCSVComma(r rune) CSVOption {
	return func(o *CSVOptions) { o.Comma = r }
}

func WithCSVHasHeaders(hasHeaders bool) CSVOption {
	return func(o *CSVOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVTrimSpace(trim bool) CSVOption {
	return func(o *CSVOptions) { o.TrimLeadingSpace = trim }
}

func WithCSVTypeHints(hints map[string]portalsync.FieldType) CSVOption {
	return func(o *CSVOptions) {
		if o.TypeHints == nil {
			o.TypeHints = make(map[string]portalsync.FieldType)
		}
		for k, v := range hints {
			o.TypeHints[k] = v
		}
	}
}

func WithCSVTimeFormats(layouts ...string) CSVOption {
	return func(o *CSVOptions) {
		o.TimeFormats = append([]string(nil), layouts...)
	}
}

func csvDefaults() CSVOptions {
	return CSVOptions{
		Comma:            ',',
		HasHeaders:       true,
		TrimLeadingSpace: true,
		TimeFormats: []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
		},
	}
}

// FromCSV reads a full CSV stream into a Dataset. Column types are
// inferred from the values (integer, float, bool, time, else string)
// unless a type hint overrides the column; empty fields become nil.
func FromCSV(r io.Reader, options ...CSVOption) (*portalsync.Dataset, error) {
	opts := csvDefaults()
	for _, opt := range options {
		opt(&opts)
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Comma
	cr.Comment = opts.Comment
	cr.LazyQuotes = opts.LazyQuotes
	cr.TrimLeadingSpace = opts.TrimLeadingSpace

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &CSVReaderError{Op: "read", Err: err}
	}
	if len(records) == 0 {
		return nil, &CSVReaderError{Op: "read", Err: fmt.Errorf("no rows in input")}
	}

	var headers []string
	if opts.HasHeaders {
		headers = records[0]
		records = records[1:]
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = "col_" + strconv.Itoa(i)
		}
	}

	cols := make([]portalsync.Column, len(headers))
	for i, name := range headers {
		t, hinted := opts.TypeHints[name]
		if !hinted {
			t = inferColumnType(records, i, opts.TimeFormats)
		}
		cols[i] = portalsync.Column{Name: name, Type: t}
	}

	ds, err := portalsync.NewDataset(cols)
	if err != nil {
		return nil, &CSVReaderError{Op: "build_dataset", Err: err}
	}
	row := make([]interface{}, len(cols))
	for _, rec := range records {
		if len(rec) != len(cols) {
			return nil, &CSVReaderError{Op: "build_dataset",
				Err: fmt.Errorf("row has %d fields, expected %d", len(rec), len(cols))}
		}
		for i, raw := range rec {
			v, err := parseCSVValue(raw, cols[i].Type, opts.TimeFormats)
			if err != nil {
				return nil, &CSVReaderError{Op: "parse_value",
					Err: fmt.Errorf("column %q: %w", cols[i].Name, err)}
			}
			row[i] = v
		}
		if err := ds.AppendRow(row...); err != nil {
			return nil, &CSVReaderError{Op: "build_dataset", Err: err}
		}
	}
	return ds, nil
}

// FromCSVFile reads a local CSV file into a Dataset.
func FromCSVFile(path string, options ...CSVOption) (*portalsync.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &CSVReaderError{Op: "open_file", Err: err}
	}
	defer f.Close()
	return FromCSV(f, options...)
}

// inferColumnType picks the narrowest type every non-empty value of the
// column parses as, in the order integer, float, bool, time; string is
// the fallback. A column of only empty fields stays a string column.
func inferColumnType(records [][]string, col int, timeFormats []string) portalsync.FieldType {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false
	for _, rec := range records {
		if col >= len(rec) {
			continue
		}
		raw := strings.TrimSpace(rec[col])
		if raw == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, err := strconv.ParseBool(raw); err != nil {
				isBool = false
			}
		}
		if isTime {
			if !parsesAsTime(raw, timeFormats) {
				isTime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return portalsync.FieldString
		}
	}
	switch {
	case !seen:
		return portalsync.FieldString
	case isInt:
		return portalsync.FieldInteger
	case isFloat:
		return portalsync.FieldFloat
	case isBool:
		return portalsync.FieldBool
	case isTime:
		return portalsync.FieldTime
	default:
		return portalsync.FieldString
	}
}

func parsesAsTime(raw string, layouts []string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

// parseCSVValue converts one raw field to the column's logical type.
func parseCSVValue(raw string, t portalsync.FieldType, timeFormats []string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	switch t {
	case portalsync.FieldInteger:
		return strconv.ParseInt(raw, 10, 64)
	case portalsync.FieldFloat:
		return strconv.ParseFloat(raw, 64)
	case portalsync.FieldBool:
		return strconv.ParseBool(raw)
	case portalsync.FieldTime:
		for _, layout := range timeFormats {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as time", raw)
	default:
		return raw, nil
	}
}
