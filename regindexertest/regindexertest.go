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

// Package regindexertest provides a mock Elasticsearch server for testing
// the indexer.
package regindexertest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"go.elastic.co/apm/module/apmelasticsearch/v2"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

// Version is the Elasticsearch version reported by the default info handler.
const Version = "8.15.0"

// Action is the action line of a bulk request item.
type Action struct {
	Type  string `json:"-"`
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

// Handlers holds the handlers of the mock server. A nil handler answers
// like an Elasticsearch cluster with no indices would.
type Handlers struct {
	Info   http.HandlerFunc // GET /
	Exists http.HandlerFunc // HEAD /{index}
	Delete http.HandlerFunc // DELETE /{index}
	Create http.HandlerFunc // PUT /{index}
	Bulk   http.HandlerFunc // POST /_bulk
	Search http.HandlerFunc // POST /{index}/_search
}

// DecodeBulkRequest decodes a /_bulk request's body, returning the decoded
// actions, the documents and a response body reporting every document as
// created.
func DecodeBulkRequest(r *http.Request) ([]Action, [][]byte, esutil.BulkIndexerResponse) {
	var body io.Reader = r.Body
	switch r.Header.Get("Content-Encoding") {
	case "gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			panic(err)
		}
		defer r.Close()
		body = r
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(nil, 16<<20)
	var actions []Action
	var indexed [][]byte
	var result esutil.BulkIndexerResponse
	for scanner.Scan() {
		line := make(map[string]Action)
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			panic(err)
		}
		if len(line) != 1 {
			panic(fmt.Errorf("invalid action line: %s", scanner.Bytes()))
		}
		var action Action
		for typ, a := range line {
			action = a
			action.Type = typ
		}
		if !scanner.Scan() {
			panic("expected source")
		}

		doc := append([]byte{}, scanner.Bytes()...)
		if !json.Valid(doc) {
			panic(fmt.Errorf("invalid JSON: %s", doc))
		}
		actions = append(actions, action)
		indexed = append(indexed, doc)

		item := esutil.BulkIndexerResponseItem{
			Index:      action.Index,
			DocumentID: action.ID,
			Result:     "created",
			Status:     http.StatusCreated,
		}
		result.Items = append(result.Items, map[string]esutil.BulkIndexerResponseItem{action.Type: item})
	}
	if err := scanner.Err(); err != nil {
		panic(err)
	}
	return actions, indexed, result
}

// BulkHandler returns a bulk handler that passes every response item to
// respond before answering. respond may be nil.
func BulkHandler(respond func(action Action, item *esutil.BulkIndexerResponseItem)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actions, _, result := DecodeBulkRequest(r)
		if respond != nil {
			for n, action := range actions {
				item := result.Items[n][action.Type]
				respond(action, &item)
				if item.Status >= 300 {
					result.HasErrors = true
				}
				result.Items[n][action.Type] = item
			}
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

// WriteJSON writes v as the JSON body of a response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}

// NewMockElasticsearchClient returns an elasticsearch.Client which sends
// requests to the handlers of h.
func NewMockElasticsearchClient(t testing.TB, h Handlers) *elasticsearch.Client {
	config := NewMockElasticsearchClientConfig(t, h)
	client, err := elasticsearch.NewClient(config)
	require.NoError(t, err)
	return client
}

// NewMockElasticsearchClientConfig starts an httptest.Server, and returns an
// elasticsearch.Config which sends requests to the handlers of h. The
// httptest.Server will be closed via t.Cleanup.
func NewMockElasticsearchClientConfig(t testing.TB, h Handlers) elasticsearch.Config {
	mux := http.NewServeMux()
	Handle(mux, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	config := elasticsearch.Config{}
	config.Addresses = []string{srv.URL}
	config.DisableRetry = true
	config.Transport = apmelasticsearch.WrapRoundTripper(http.DefaultTransport)

	return config
}

// Handle registers the handlers of h with mux, wrapping them to conform
// with go-elasticsearch product checking.
func Handle(mux *http.ServeMux, h Handlers) {
	route := func(pattern string, handler, fallback http.HandlerFunc) {
		if handler == nil {
			handler = fallback
		}
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			handler.ServeHTTP(w, r)
		})
	}
	route("GET /{$}", h.Info, infoHandler)
	route("HEAD /{index}", h.Exists, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	route("DELETE /{index}", h.Delete, acknowledged)
	route("PUT /{index}", h.Create, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"acknowledged":        true,
			"shards_acknowledged": true,
			"index":               r.PathValue("index"),
		})
	})
	route("POST /_bulk", h.Bulk, BulkHandler(nil))
	route("POST /{index}/_search", h.Search, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SearchResponse(0))
	})
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"name":         "mock",
		"cluster_name": "mock",
		"version": map[string]any{
			"number":       Version,
			"build_flavor": "default",
		},
		"tagline": "You Know, for Search",
	})
}

func acknowledged(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

// Hit is a search hit returned by SearchResponse.
type Hit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

// SearchResponse returns a search response body holding hits and
// reporting total matches.
func SearchResponse(total int64, hits ...Hit) map[string]any {
	if hits == nil {
		hits = []Hit{}
	}
	return map[string]any{
		"took":      1,
		"timed_out": false,
		"hits": map[string]any{
			"total": map[string]any{"value": total, "relation": "eq"},
			"hits":  hits,
		},
	}
}
