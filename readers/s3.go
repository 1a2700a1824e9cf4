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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/portalsync"
)

// S3ReaderError provides structured error information for the S3 loader.
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "get_object", "parse")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3Options configures the S3 loader.
type S3Options struct {
	Bucket         string          // S3 bucket name
	Key            string          // Object key of the CSV to load
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	CSVOptions     []CSVOption     // Parsing options for the object's contents
}

// S3Option represents a configuration function for S3Options.
type S3Option func(*S3Options)

func WithS3Bucket(bucket string) S3Option {
	return func(o *S3Options) { o.Bucket = bucket }
}

func WithS3Key(key string) S3Option {
	return func(o *S3Options) { o.Key = key }
}

func WithS3Region(region string) S3Option {
	return func(o *S3Options) { o.Region = region }
}

func WithS3Profile(profile string) S3Option {
	return func(o *S3Options) { o.Profile = profile }
}

func WithS3Credentials(creds aws.Credentials) S3Option {
	return func(o *S3Options) { o.Credentials = creds }
}

func WithS3Endpoint(endpoint string) S3Option {
	return func(o *S3Options) { o.EndpointURL = endpoint }
}

func WithS3PathStyle(pathStyle bool) S3Option {
	return func(o *S3Options) { o.ForcePathStyle = pathStyle }
}

func WithS3CSVOptions(options ...CSVOption) S3Option {
	return func(o *S3Options) { o.CSVOptions = append(o.CSVOptions, options...) }
}

// FromS3 loads a CSV object from S3 into a Dataset.
func FromS3(ctx context.Context, options ...S3Option) (*portalsync.Dataset, error) {
	var opts S3Options
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Bucket == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket is required")}
	}
	if opts.Key == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("key is required")}
	}

	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(opts.Key),
	})
	if err != nil {
		return nil, &S3ReaderError{Op: "get_object", Err: err}
	}
	defer obj.Body.Close()

	ds, err := FromCSV(obj.Body, opts.CSVOptions...)
	if err != nil {
		return nil, &S3ReaderError{Op: "parse", Err: err}
	}
	return ds, nil
}

// createAWSConfig creates the AWS configuration from options.
func createAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Credentials.AccessKeyID != "" {
		provider := credentials.NewStaticCredentialsProvider(
			opts.Credentials.AccessKeyID,
			opts.Credentials.SecretAccessKey,
			opts.Credentials.SessionToken,
		)
		configOpts = append(configOpts, config.WithCredentialsProvider(provider))
	}

	return config.LoadDefaultConfig(ctx, configOpts...)
}
