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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/portalsync"
)

// ParquetReaderError provides structured error information for the
// Parquet loader.
type ParquetReaderError struct {
	Op  string // Operation that failed (e.g., "open_file", "read_batch")
	Err error  // Underlying error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetOptions configures the Parquet loader.
type ParquetOptions struct {
	BatchSize int64    // rows per Arrow record batch
	Columns   []string // optional column projection
}

// ParquetOption represents a configuration function for ParquetOptions.
type ParquetOption func(*ParquetOptions)

func WithParquetBatchSize(size int64) ParquetOption {
	return func(o *ParquetOptions) { o.BatchSize = size }
}

func WithParquetColumns(columns ...string) ParquetOption {
	return func(o *ParquetOptions) {
		o.Columns = append([]string(nil), columns...)
	}
}

// FromParquet loads a local Parquet file into a Dataset.
func FromParquet(ctx context.Context, path string, options ...ParquetOption) (*portalsync.Dataset, error) {
	opts := ParquetOptions{BatchSize: 1024}
	for _, opt := range options {
		opt(&opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ParquetReaderError{Op: "open_file", Err: err}
	}
	defer f.Close()

	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}
	defer parquetReader.Close()

	arrowReader, err := pqarrow.NewFileReader(parquetReader,
		pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, memory.NewGoAllocator())
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	if len(opts.Columns) > 0 {
		for _, name := range opts.Columns {
			idx := -1
			for i, field := range schema.Fields() {
				if field.Name == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, &ParquetReaderError{Op: "column_projection",
					Err: fmt.Errorf("column %q not found in schema", name)}
			}
			colIndices = append(colIndices, idx)
		}
	}

	recordReader, err := arrowReader.GetRecordReader(ctx, colIndices, nil)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}
	defer recordReader.Release()

	fields := schema.Fields()
	if len(colIndices) > 0 {
		projected := make([]arrow.Field, len(colIndices))
		for i, idx := range colIndices {
			projected[i] = fields[idx]
		}
		fields = projected
	}
	cols := make([]portalsync.Column, len(fields))
	for i, field := range fields {
		cols[i] = portalsync.Column{Name: field.Name, Type: fieldTypeForArrow(field.Type)}
	}

	ds, err := portalsync.NewDataset(cols)
	if err != nil {
		return nil, &ParquetReaderError{Op: "build_dataset", Err: err}
	}

	row := make([]interface{}, len(cols))
	for {
		rec, err := recordReader.Read()
		if err == io.EOF || rec == nil {
			break
		}
		if err != nil {
			return nil, &ParquetReaderError{Op: "read_batch", Err: err}
		}
		for pos := 0; pos < int(rec.NumRows()); pos++ {
			for i := 0; i < int(rec.NumCols()); i++ {
				row[i] = arrowValue(rec.Column(i), pos)
			}
			if err := ds.AppendRow(row...); err != nil {
				rec.Release()
				return nil, &ParquetReaderError{Op: "build_dataset", Err: err}
			}
		}
		rec.Release()
	}
	return ds, nil
}

// fieldTypeForArrow maps Arrow types onto Dataset field types.
func fieldTypeForArrow(t arrow.DataType) portalsync.FieldType {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return portalsync.FieldInteger
	case arrow.FLOAT32, arrow.FLOAT64:
		return portalsync.FieldFloat
	case arrow.BOOL:
		return portalsync.FieldBool
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return portalsync.FieldTime
	default:
		return portalsync.FieldString
	}
}

// arrowValue extracts one cell from an Arrow column as a Dataset value.
func arrowValue(col arrow.Array, pos int) interface{} {
	if col.IsNull(pos) {
		return nil
	}
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(pos)
	case *array.Int8:
		return int64(arr.Value(pos))
	case *array.Int16:
		return int64(arr.Value(pos))
	case *array.Int32:
		return int64(arr.Value(pos))
	case *array.Int64:
		return arr.Value(pos)
	case *array.Uint8:
		return int64(arr.Value(pos))
	case *array.Uint16:
		return int64(arr.Value(pos))
	case *array.Uint32:
		return int64(arr.Value(pos))
	case *array.Uint64:
		return int64(arr.Value(pos))
	case *array.Float32:
		return float64(arr.Value(pos))
	case *array.Float64:
		return arr.Value(pos)
	case *array.String:
		return arr.Value(pos)
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(pos).ToTime(unit).UTC()
	case *array.Date32:
		return arr.Value(pos).ToTime().UTC()
	case *array.Date64:
		return arr.Value(pos).ToTime().UTC()
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(pos))
	}
}
