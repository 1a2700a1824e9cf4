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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/portalsync"
)

// This file implements the portalsync.ContentStore surface: item upload,
// schema analysis, deletion, search, service-name availability, item
// resolution, and publishing.

// Upload stages a local file as a content item owned by the session user.
func (c *Client) Upload(ctx context.Context, localPath string, props portalsync.ItemProperties) (portalsync.Asset, error) {
	addURL := fmt.Sprintf("%s/content/users/%s/addItem", c.baseURL, c.username)

	f, err := os.Open(localPath)
	if err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}
	defer f.Close()

	itemType := props.Type
	if itemType == "" {
		itemType = "CSV"
	}
	title := props.Title
	if title == "" {
		title = filepath.Base(localPath)
	}

	fields := map[string]string{
		"f":           "json",
		"token":       c.token,
		"title":       title,
		"type":        itemType,
		"tags":        strings.Join(props.Tags, ","),
		"snippet":     props.Snippet,
		"description": props.Description,
		"async":       "false",
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}
	if err := mw.Close(); err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addURL, &body)
	if err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL,
			StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL, Err: err}
	}

	var out struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	if err := decodeEnvelope(addURL, data, &out); err != nil {
		return portalsync.Asset{}, err
	}
	if !out.Success || out.ID == "" {
		return portalsync.Asset{}, &ClientError{Op: "upload", URL: addURL,
			Err: fmt.Errorf("item was not created")}
	}
	return portalsync.Asset{ID: out.ID, Title: title}, nil
}

// Analyze runs the portal's schema analysis on a staged asset and returns
// the publish parameters for append and publish calls.
func (c *Client) Analyze(ctx context.Context, assetID, fileType string) (map[string]interface{}, error) {
	analyzeURL := c.baseURL + "/content/features/analyze"
	form := url.Values{
		"itemId":   {assetID},
		"fileType": {fileType},
	}
	var out struct {
		PublishParameters map[string]interface{} `json:"publishParameters"`
	}
	if err := c.postForm(ctx, analyzeURL, form, &out); err != nil {
		return nil, err
	}
	if out.PublishParameters == nil {
		return nil, &ClientError{Op: "analyze", URL: analyzeURL,
			Err: fmt.Errorf("no publish parameters returned")}
	}
	return out.PublishParameters, nil
}

// Delete removes a content item owned by the session user.
func (c *Client) Delete(ctx context.Context, assetID string) error {
	deleteURL := fmt.Sprintf("%s/content/users/%s/items/%s/delete", c.baseURL, c.username, assetID)
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.postForm(ctx, deleteURL, nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return &ClientError{Op: "delete", URL: deleteURL, Err: fmt.Errorf("item was not deleted")}
	}
	return nil
}

// Search finds content items matching a portal search query, scoped to
// the session user.
func (c *Client) Search(ctx context.Context, query string) ([]portalsync.Asset, error) {
	searchURL := c.baseURL + "/search"
	form := url.Values{
		"q":   {fmt.Sprintf("%s AND owner:%s", query, c.username)},
		"num": {"100"},
	}
	var out struct {
		Results []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := c.postForm(ctx, searchURL, form, &out); err != nil {
		return nil, err
	}
	assets := make([]portalsync.Asset, 0, len(out.Results))
	for _, r := range out.Results {
		assets = append(assets, portalsync.Asset{ID: r.ID, Title: r.Title})
	}
	return assets, nil
}

// CheckNameAvailable reports whether a hosted service name is free.
func (c *Client) CheckNameAvailable(ctx context.Context, name string) (bool, error) {
	checkURL := c.baseURL + "/portals/self/isServiceNameAvailable"
	form := url.Values{
		"name": {name},
		"type": {"Feature Service"},
	}
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.postForm(ctx, checkURL, form, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// Table resolves an item identifier to its hosted-table handle. Items
// publish layers and tables under a feature service URL; the first table
// (or layer, when no table exists) is the handle's target.
func (c *Client) Table(ctx context.Context, itemID string) (portalsync.TableHandle, error) {
	itemURL := c.baseURL + "/content/items/" + itemID
	var item struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := c.postForm(ctx, itemURL, nil, &item); err != nil {
		return nil, err
	}
	if item.URL == "" {
		return nil, &ClientError{Op: "resolve_item", URL: itemURL,
			Err: fmt.Errorf("item %s has no service url", itemID)}
	}

	serviceURL := strings.TrimRight(item.URL, "/")
	var svc struct {
		Layers []struct {
			ID int `json:"id"`
		} `json:"layers"`
		Tables []struct {
			ID int `json:"id"`
		} `json:"tables"`
	}
	if err := c.postForm(ctx, serviceURL, nil, &svc); err != nil {
		return nil, err
	}

	layerID := 0
	switch {
	case len(svc.Tables) > 0:
		layerID = svc.Tables[0].ID
	case len(svc.Layers) > 0:
		layerID = svc.Layers[0].ID
	default:
		return nil, &ClientError{Op: "resolve_item", URL: serviceURL,
			Err: fmt.Errorf("service has no layers or tables")}
	}

	return &Table{
		client:   c,
		itemID:   item.ID,
		title:    item.Title,
		layerURL: fmt.Sprintf("%s/%d", serviceURL, layerID),
	}, nil
}

// Publish turns a staged asset into a new hosted table and resolves the
// resulting service item.
func (c *Client) Publish(ctx context.Context, assetID string, props portalsync.ItemProperties) (portalsync.TableHandle, error) {
	publishURL := fmt.Sprintf("%s/content/users/%s/publish", c.baseURL, c.username)

	publishParams := map[string]interface{}{
		"type": "csv",
		"name": props.Title,
	}
	encoded, err := json.Marshal(publishParams)
	if err != nil {
		return nil, &ClientError{Op: "publish", URL: publishURL, Err: err}
	}
	form := url.Values{
		"itemId":            {assetID},
		"fileType":          {"csv"},
		"publishParameters": {string(encoded)},
	}

	var out struct {
		Services []struct {
			ServiceItemID string `json:"serviceItemId"`
			Success       bool   `json:"success"`
			Error         *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"services"`
	}
	if err := c.postForm(ctx, publishURL, form, &out); err != nil {
		return nil, err
	}
	if len(out.Services) == 0 {
		return nil, &ClientError{Op: "publish", URL: publishURL,
			Err: fmt.Errorf("no service was published")}
	}
	svc := out.Services[0]
	if svc.Error != nil {
		return nil, &ClientError{Op: "publish", URL: publishURL,
			Err: fmt.Errorf("%s", svc.Error.Message)}
	}
	if svc.ServiceItemID == "" {
		return nil, &ClientError{Op: "publish", URL: publishURL,
			Err: fmt.Errorf("publish returned no service item id")}
	}
	return c.Table(ctx, svc.ServiceItemID)
}
