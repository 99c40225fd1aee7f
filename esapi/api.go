// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package esapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InfoRequest configures the cluster info API request (GET /).
type InfoRequest struct {
	Header http.Header
}

// Do executes the request and returns response or error.
func (r InfoRequest) Do(ctx context.Context, transport Transport) (*Response, error) {
	return perform(ctx, transport, newRequest(http.MethodGet, "/", nil), r.Header)
}

// IndicesExistsRequest configures the index existence API request (HEAD /{index}).
type IndicesExistsRequest struct {
	Index  string
	Header http.Header
}

// Do executes the request and returns response or error.
func (r IndicesExistsRequest) Do(ctx context.Context, transport Transport) (*Response, error) {
	return perform(ctx, transport, newRequest(http.MethodHead, "/"+r.Index, nil), r.Header)
}

// IndicesDeleteRequest configures the delete index API request (DELETE /{index}).
type IndicesDeleteRequest struct {
	Index         string
	MasterTimeout time.Duration
	Header        http.Header
}

// Do executes the request and returns response or error.
func (r IndicesDeleteRequest) Do(ctx context.Context, transport Transport) (*Response, error) {
	req := newRequest(http.MethodDelete, "/"+r.Index, nil)
	if r.MasterTimeout != 0 {
		req.URL.RawQuery = url.Values{"master_timeout": {formatDuration(r.MasterTimeout)}}.Encode()
	}
	return perform(ctx, transport, req, r.Header)
}

// IndicesCreateRequest configures the create index API request (PUT /{index}).
type IndicesCreateRequest struct {
	Index         string
	Body          io.Reader
	MasterTimeout time.Duration
	Header        http.Header
}

// Do executes the request and returns response or error.
func (r IndicesCreateRequest) Do(ctx context.Context, transport Transport) (*Response, error) {
	req := newRequest(http.MethodPut, "/"+r.Index, r.Body)
	if r.MasterTimeout != 0 {
		req.URL.RawQuery = url.Values{"master_timeout": {formatDuration(r.MasterTimeout)}}.Encode()
	}
	if r.Body != nil {
		req.Header.Set(headerContentType, ContentTypeJSON)
	}
	return perform(ctx, transport, req, r.Header)
}

// BulkRequest configures the bulk API request (POST /_bulk).
//
// Body must hold newline delimited action and source lines, each terminated
// by a newline. If Gzip is set, Body must already be gzip compressed.
type BulkRequest struct {
	Body       io.Reader
	Gzip       bool
	Timeout    time.Duration
	FilterPath []string
	Header     http.Header
}

// Do executes the request and returns response or error.
func (r BulkRequest) Do(ctx context.Context, transport Transport) (*Response, error) {
	req := newRequest(http.MethodPost, "/_bulk", r.Body)
	params := url.Values{}
	if r.Timeout != 0 {
		params.Set("timeout", formatDuration(r.Timeout))
	}
	if len(r.FilterPath) > 0 {
		params.Set("filter_path", strings.Join(r.FilterPath, ","))
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set(headerContentType, ContentTypeNDJSON)
	if r.Gzip {
		req.Header.Set(headerContentEncoding, "gzip")
	}
	return perform(ctx, transport, req, r.Header)
}

// SearchRequest configures the search API request (POST /{index}/_search).
type SearchRequest struct {
	Index  string
	Body   io.Reader
	Header http.Header
}

// Do executes the request and returns response or error.
func (r SearchRequest) Do(ctx context.Context, transport Transport) (*Response, error) {
	path := "/_search"
	if r.Index != "" {
		path = "/" + r.Index + "/_search"
	}
	req := newRequest(http.MethodPost, path, r.Body)
	if r.Body != nil {
		req.Header.Set(headerContentType, ContentTypeJSON)
	}
	return perform(ctx, transport, req, r.Header)
}
