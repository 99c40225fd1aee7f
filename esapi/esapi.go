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

// Package esapi contains a stripped down version of https://github.com/elastic/go-elasticsearch/tree/main/esapi
// covering only the requests issued by the regulation indexer: cluster info,
// index existence/deletion/creation, bulk and search.
package esapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"

	// ContentTypeJSON is used for every request carrying a single JSON body.
	ContentTypeJSON = "application/json"

	// ContentTypeNDJSON is used for _bulk request bodies.
	ContentTypeNDJSON = "application/x-ndjson"
)

// Transport defines the interface for an API client.
type Transport interface {
	Perform(*http.Request) (*http.Response, error)
}

// Response represents the API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// IsError returns true when the response status indicates failure.
func (r *Response) IsError() bool {
	return r.StatusCode > 299
}

// String returns the response status and at most 500 bytes of the body.
// The body is consumed.
func (r *Response) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strconv.Itoa(r.StatusCode))
	b.WriteString(" ")
	b.WriteString(http.StatusText(r.StatusCode))
	b.WriteString("]")
	if r.Body != nil {
		if excerpt := BodyExcerpt(r.Body, 500); excerpt != "" {
			b.WriteString(" ")
			b.WriteString(excerpt)
		}
	}
	return b.String()
}

// BodyExcerpt reads at most n bytes of body.
func BodyExcerpt(body io.Reader, n int64) string {
	p, _ := io.ReadAll(io.LimitReader(body, n))
	return strings.TrimSpace(string(p))
}

func newRequest(method, path string, body io.Reader) *http.Request {
	r := http.Request{
		Method:     method,
		URL:        &url.URL{Path: path},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
	}
	if body != nil {
		if b, ok := body.(interface{ Len() int }); ok {
			r.ContentLength = int64(b.Len())
		}
		r.Body = io.NopCloser(body)
	}
	return &r
}

func perform(ctx context.Context, transport Transport, req *http.Request, header http.Header) (*Response, error) {
	for k, vv := range header {
		req.Header.Del(k)
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	res, err := transport.Perform(req)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
	}, nil
}

// formatDuration converts duration to a string in the format
// accepted by Elasticsearch.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return strconv.FormatInt(int64(d), 10) + "nanos"
	}
	return strconv.FormatInt(int64(d)/int64(time.Millisecond), 10) + "ms"
}
