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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aaronlmathis/portalsync"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresReaderError provides structured error information for the
// Postgres loader.
type PostgresReaderError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan")
	Err error  // Underlying error
}

func (e *PostgresReaderError) Error() string {
	return fmt.Sprintf("postgres reader %s: %v", e.Op, e.Err)
}

func (e *PostgresReaderError) Unwrap() error {
	return e.Err
}

// PostgresOptions configures the Postgres loader.
type PostgresOptions struct {
	DSN          string        // Database connection string
	Query        string        // SQL query to execute
	Params       []interface{} // Optional query parameters
	QueryTimeout time.Duration // Query execution timeout
	MaxOpenConns int
	MaxIdleConns int
}

// PostgresOption represents a configuration function for PostgresOptions.
type PostgresOption func(*PostgresOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresOption {
	return func(o *PostgresOptions) { o.DSN = dsn }
}

// WithPostgresQuery sets the SQL query and optional parameters.
func WithPostgresQuery(query string, params ...interface{}) PostgresOption {
	return func(o *PostgresOptions) {
		o.Query = query
		if len(params) > 0 {
			o.Params = append([]interface{}(nil), params...)
		}
	}
}

// WithPostgresQueryTimeout bounds query execution time.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresOption {
	return func(o *PostgresOptions) { o.QueryTimeout = timeout }
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int) PostgresOption {
	return func(o *PostgresOptions) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
	}
}

func postgresDefaults() PostgresOptions {
	return PostgresOptions{
		QueryTimeout: 30 * time.Second,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
}

// FromPostgres runs a query and materializes the full result set as a
// Dataset. Column types are mapped from the driver's database type names.
func FromPostgres(ctx context.Context, options ...PostgresOption) (*portalsync.Dataset, error) {
	opts := postgresDefaults()
	for _, opt := range options {
		opt(&opts)
	}
	if opts.DSN == "" {
		return nil, &PostgresReaderError{Op: "validate_options", Err: fmt.Errorf("DSN is required")}
	}
	if opts.Query == "" {
		return nil, &PostgresReaderError{Op: "validate_options", Err: fmt.Errorf("query is required")}
	}

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresReaderError{Op: "connect", Err: err}
	}
	defer db.Close()
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		return nil, &PostgresReaderError{Op: "connect", Err: err}
	}

	queryCtx := ctx
	if opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, opts.QueryTimeout)
		defer cancel()
	}

	rows, err := db.QueryContext(queryCtx, opts.Query, opts.Params...)
	if err != nil {
		return nil, &PostgresReaderError{Op: "query", Err: err}
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &PostgresReaderError{Op: "column_types", Err: err}
	}
	cols := make([]portalsync.Column, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = portalsync.Column{
			Name: ct.Name(),
			Type: fieldTypeForPostgres(ct.DatabaseTypeName()),
		}
	}

	ds, err := portalsync.NewDataset(cols)
	if err != nil {
		return nil, &PostgresReaderError{Op: "build_dataset", Err: err}
	}

	scan := make([]interface{}, len(cols))
	for i := range scan {
		scan[i] = new(interface{})
	}
	row := make([]interface{}, len(cols))
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, &PostgresReaderError{Op: "scan", Err: err}
		}
		for i := range scan {
			row[i] = normalizeSQLValue(*(scan[i].(*interface{})))
		}
		if err := ds.AppendRow(row...); err != nil {
			return nil, &PostgresReaderError{Op: "build_dataset", Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &PostgresReaderError{Op: "read", Err: err}
	}
	return ds, nil
}

// fieldTypeForPostgres maps driver type names onto Dataset field types.
func fieldTypeForPostgres(dbType string) portalsync.FieldType {
	switch strings.ToUpper(dbType) {
	case "INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return portalsync.FieldInteger
	case "FLOAT4", "FLOAT8", "NUMERIC", "DECIMAL":
		return portalsync.FieldFloat
	case "BOOL":
		return portalsync.FieldBool
	case "DATE", "TIME", "TIMESTAMP", "TIMESTAMPTZ":
		return portalsync.FieldTime
	default:
		return portalsync.FieldString
	}
}

// normalizeSQLValue converts driver values into the small set of types
// the Dataset carries. lib/pq hands back []byte for text and numerics.
func normalizeSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}
