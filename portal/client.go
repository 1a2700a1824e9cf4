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
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Package portal provides the REST bindings that satisfy the portalsync
// capability interfaces against an ArcGIS-Online-style content portal.
// The bindings are a thin sequencing layer over the portal's sharing API;
// token acquisition is the caller's concern.

// ClientError provides structured error information for portal operations.
type ClientError struct {
	Op         string // Operation that failed (e.g., "request", "upload", "append")
	URL        string // URL being accessed when the error occurred
	StatusCode int    // HTTP status code if applicable
	PortalCode int    // Error code from the portal's JSON error envelope
	Err        error  // Underlying error
}

func (e *ClientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("portal %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("portal %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClientOptions configures the portal client.
type ClientOptions struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	RetryAttempts int           // retries after the first attempt
	RetryDelay    time.Duration // base delay, doubled per retry
	UserAgent     string
	JobPollDelay  time.Duration // spacing between async job status polls
	JobPollLimit  int           // maximum status polls per async job
}

// ClientOption is a functional option for NewClient.
type ClientOption func(*ClientOptions)

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *ClientOptions) { o.HTTPClient = client }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) { o.Timeout = timeout }
}

// WithRetry configures transport-level retries for transient failures.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) { o.UserAgent = ua }
}

// WithJobPolling tunes how async portal jobs (append, truncate) are
// polled for completion.
func WithJobPolling(delay time.Duration, limit int) ClientOption {
	return func(o *ClientOptions) {
		o.JobPollDelay = delay
		o.JobPollLimit = limit
	}
}

// Client is an authenticated session against one portal. It implements
// the portalsync.ContentStore interface; Table resolves hosted-table
// handles that implement portalsync.TableHandle.
type Client struct {
	baseURL  string // {portal}/sharing/rest
	username string
	token    string
	client   *http.Client
	opts     ClientOptions
}

// NewClient creates a portal session. portalURL is the organization URL
// (e.g. https://example.maps.arcgis.com); username and token identify an
// already-authenticated user.
func NewClient(portalURL, username, token string, options ...ClientOption) (*Client, error) {
	if portalURL == "" {
		return nil, fmt.Errorf("portal URL is required")
	}
	if username == "" || token == "" {
		return nil, fmt.Errorf("username and token are required")
	}

	opts := ClientOptions{
		Timeout:       60 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		UserAgent:     "portalsync",
		JobPollDelay:  time.Second,
		JobPollLimit:  300,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(portalURL, "/") + "/sharing/rest",
		username: username,
		token:    token,
		client:   opts.HTTPClient,
		opts:     opts,
	}, nil
}

// BaseURL returns the sharing API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// postForm executes a form-encoded POST against an absolute URL, retrying
// transient failures, and decodes the JSON response into out. The portal
// reports errors inside a JSON envelope with HTTP 200, so the envelope is
// checked on every response.
func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, out interface{}) error {
	if form == nil {
		form = url.Values{}
	}
	form.Set("f", "json")
	form.Set("token", c.token)
	body := form.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &ClientError{Op: "request", URL: rawURL, Err: ctx.Err()}
			}
		}

		data, err := c.execute(ctx, rawURL, body)
		if err == nil {
			return decodeEnvelope(rawURL, data, out)
		}
		lastErr = err

		if cerr, ok := err.(*ClientError); ok {
			if cerr.StatusCode == http.StatusTooManyRequests || cerr.StatusCode >= 500 {
				continue
			}
			break
		}
	}
	return lastErr
}

// execute performs a single POST and returns the raw response body.
func (c *Client) execute(ctx context.Context, rawURL, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
	if err != nil {
		return nil, &ClientError{Op: "create_request", URL: rawURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ClientError{Op: "request", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Op:         "status_check",
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{Op: "read_response", URL: rawURL, Err: err}
	}
	return data, nil
}

// decodeEnvelope rejects the portal's embedded error envelope and decodes
// the payload into out when given.
func decodeEnvelope(rawURL string, data []byte, out interface{}) error {
	var envelope struct {
		Error *struct {
			Code    int      `json:"code"`
			Message string   `json:"message"`
			Details []string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &ClientError{Op: "decode", URL: rawURL, Err: err}
	}
	if envelope.Error != nil {
		msg := envelope.Error.Message
		if len(envelope.Error.Details) > 0 {
			msg += ": " + strings.Join(envelope.Error.Details, "; ")
		}
		return &ClientError{
			Op:         "portal_error",
			URL:        rawURL,
			PortalCode: envelope.Error.Code,
			Err:        fmt.Errorf("%s", msg),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Op: "decode", URL: rawURL, Err: err}
	}
	return nil
}

// waitForJob polls an async job status URL until the job completes.
func (c *Client) waitForJob(ctx context.Context, statusURL string) error {
	for attempt := 0; attempt < c.opts.JobPollLimit; attempt++ {
		select {
		case <-time.After(c.opts.JobPollDelay):
		case <-ctx.Done():
			return &ClientError{Op: "job_status", URL: statusURL, Err: ctx.Err()}
		}

		var status struct {
			Status string `json:"status"`
		}
		if err := c.postForm(ctx, statusURL, nil, &status); err != nil {
			return err
		}
		switch strings.ToLower(status.Status) {
		case "completed":
			return nil
		case "failed":
			return &ClientError{Op: "job_status", URL: statusURL, Err: fmt.Errorf("job failed")}
		}
	}
	return &ClientError{Op: "job_status", URL: statusURL,
		Err: fmt.Errorf("job did not complete after %d polls", c.opts.JobPollLimit)}
}
