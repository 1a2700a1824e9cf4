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
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/portalsync"
)

// MongoReaderError provides structured error information for the MongoDB
// loader.
type MongoReaderError struct {
	Op         string // Operation that failed (e.g., "connect", "query", "decode")
	Collection string // Collection being accessed when the error occurred
	Err        error  // Underlying error
}

func (e *MongoReaderError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo reader %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo reader %s: %v", e.Op, e.Err)
}

func (e *MongoReaderError) Unwrap() error {
	return e.Err
}

// MongoOptions configures the MongoDB loader.
type MongoOptions struct {
	URI            string        // MongoDB connection URI
	Database       string        // Database name
	Collection     string        // Collection name
	Filter         interface{}   // Find filter; nil means all documents
	Sort           interface{}   // Optional sort specification
	Limit          int64         // Maximum documents to load (0 = unlimited)
	ConnectTimeout time.Duration // Connection timeout
}

// MongoOption represents a configuration function for MongoOptions.
type MongoOption func(*MongoOptions)

func WithMongoURI(uri string) MongoOption {
	return func(o *MongoOptions) { o.URI = uri }
}

func WithMongoDatabase(database string) MongoOption {
	return func(o *MongoOptions) { o.Database = database }
}

func WithMongoCollection(collection string) MongoOption {
	return func(o *MongoOptions) { o.Collection = collection }
}

func WithMongoFilter(filter interface{}) MongoOption {
	return func(o *MongoOptions) { o.Filter = filter }
}

func WithMongoSort(sortSpec interface{}) MongoOption {
	return func(o *MongoOptions) { o.Sort = sortSpec }
}

func WithMongoLimit(limit int64) MongoOption {
	return func(o *MongoOptions) { o.Limit = limit }
}

func WithMongoConnectTimeout(timeout time.Duration) MongoOption {
	return func(o *MongoOptions) { o.ConnectTimeout = timeout }
}

// FromMongo loads the documents of a collection into a Dataset. The
// column set is the union of all document fields, _id first and the rest
// alphabetical; field types are taken from the first non-nil value seen.
func FromMongo(ctx context.Context, opts ...MongoOption) (*portalsync.Dataset, error) {
	o := MongoOptions{ConnectTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.URI == "" {
		return nil, &MongoReaderError{Op: "validate_options", Err: fmt.Errorf("URI is required")}
	}
	if o.Database == "" || o.Collection == "" {
		return nil, &MongoReaderError{Op: "validate_options",
			Err: fmt.Errorf("database and collection are required")}
	}

	connectCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(o.URI))
	if err != nil {
		return nil, &MongoReaderError{Op: "connect", Err: err}
	}
	defer func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }()

	coll := client.Database(o.Database).Collection(o.Collection)

	filter := o.Filter
	if filter == nil {
		filter = bson.D{}
	}
	findOpts := options.Find()
	if o.Sort != nil {
		findOpts.SetSort(o.Sort)
	}
	if o.Limit > 0 {
		findOpts.SetLimit(o.Limit)
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, &MongoReaderError{Op: "query", Collection: o.Collection, Err: err}
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &MongoReaderError{Op: "decode", Collection: o.Collection, Err: err}
	}
	if len(docs) == 0 {
		return nil, &MongoReaderError{Op: "query", Collection: o.Collection,
			Err: fmt.Errorf("collection returned no documents")}
	}

	cols := mongoColumns(docs)
	ds, err := portalsync.NewDataset(cols)
	if err != nil {
		return nil, &MongoReaderError{Op: "build_dataset", Collection: o.Collection, Err: err}
	}
	row := make([]interface{}, len(cols))
	for _, doc := range docs {
		for i, col := range cols {
			row[i] = convertBSONValue(doc[col.Name])
		}
		if err := ds.AppendRow(row...); err != nil {
			return nil, &MongoReaderError{Op: "build_dataset", Collection: o.Collection, Err: err}
		}
	}
	return ds, nil
}

// mongoColumns derives the column set from the loaded documents.
func mongoColumns(docs []bson.M) []portalsync.Column {
	names := make(map[string]struct{})
	for _, doc := range docs {
		for k := range doc {
			names[k] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(names))
	for k := range names {
		if k != "_id" {
			ordered = append(ordered, k)
		}
	}
	sort.Strings(ordered)
	if _, hasID := names["_id"]; hasID {
		ordered = append([]string{"_id"}, ordered...)
	}

	cols := make([]portalsync.Column, len(ordered))
	for i, name := range ordered {
		cols[i] = portalsync.Column{Name: name, Type: mongoFieldType(docs, name)}
	}
	return cols
}

func mongoFieldType(docs []bson.M, name string) portalsync.FieldType {
	for _, doc := range docs {
		switch doc[name].(type) {
		case nil:
			continue
		case int32, int64, int:
			return portalsync.FieldInteger
		case float64, float32:
			return portalsync.FieldFloat
		case bool:
			return portalsync.FieldBool
		case primitive.DateTime, time.Time:
			return portalsync.FieldTime
		default:
			return portalsync.FieldString
		}
	}
	return portalsync.FieldString
}

// convertBSONValue maps BSON values onto the Dataset's value types.
func convertBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
