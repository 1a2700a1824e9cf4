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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, serverURL string, options ...ClientOption) *Client {
	t.Helper()
	options = append(options, WithRetry(2, time.Millisecond), WithJobPolling(time.Millisecond, 5))
	c, err := NewClient(serverURL, "tester", "secret-token", options...)
	require.NoError(t, err)
	return c
}

// TestNewClient_Validation tests required-argument checking
func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "user", "token")
	assert.Error(t, err)

	_, err = NewClient("https://example.maps.arcgis.com", "", "token")
	assert.Error(t, err)

	_, err = NewClient("https://example.maps.arcgis.com", "user", "")
	assert.Error(t, err)

	c, err := NewClient("https://example.maps.arcgis.com/", "user", "token")
	require.NoError(t, err)
	assert.Equal(t, "https://example.maps.arcgis.com/sharing/rest", c.BaseURL())
}

// TestClient_PostForm_TokenAttached tests that every request carries the
// session token and JSON format flag
func TestClient_PostForm_TokenAttached(t *testing.T) {
	var gotToken, gotFormat, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotToken = r.PostFormValue("token")
		gotFormat = r.PostFormValue("f")
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.postForm(context.Background(), server.URL+"/endpoint", nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "secret-token", gotToken)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "portalsync", gotAgent)
}

// TestClient_PostForm_ErrorEnvelope tests decoding of the portal's
// HTTP-200 error envelope
func TestClient_PostForm_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":498,"message":"Invalid token.","details":["Token expired."]}}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.postForm(context.Background(), server.URL+"/endpoint", nil, nil)
	require.Error(t, err)

	var cerr *ClientError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 498, cerr.PortalCode)
	assert.Contains(t, cerr.Error(), "Invalid token.")
	assert.Contains(t, cerr.Error(), "Token expired.")
}

// TestClient_PostForm_RetriesTransient tests retry on 5xx followed by
// success
func TestClient_PostForm_RetriesTransient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.postForm(context.Background(), server.URL+"/endpoint", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestClient_PostForm_NoRetryOnClientError tests that 4xx fails fast
func TestClient_PostForm_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.postForm(context.Background(), server.URL+"/endpoint", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var cerr *ClientError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusForbidden, cerr.StatusCode)
}

// TestClient_PostForm_RetryBudgetExhausted tests persistent 5xx failure
func TestClient_PostForm_RetryBudgetExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.postForm(context.Background(), server.URL+"/endpoint", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "first attempt plus two retries")
}

// TestClient_WaitForJob tests async job polling to completion
func TestClient_WaitForJob(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			fmt.Fprint(w, `{"status":"processing"}`)
			return
		}
		fmt.Fprint(w, `{"status":"Completed"}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.waitForJob(context.Background(), server.URL+"/status")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

// TestClient_WaitForJob_Failed tests the failed-job outcome
func TestClient_WaitForJob_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"failed"}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.waitForJob(context.Background(), server.URL+"/status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job failed")
}

// TestClient_WaitForJob_PollLimit tests the bounded poll budget
func TestClient_WaitForJob_PollLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"processing"}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL) // JobPollLimit 5
	err := c.waitForJob(context.Background(), server.URL+"/status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")
}
