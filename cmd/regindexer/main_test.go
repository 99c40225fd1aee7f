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

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexin/regindexer/regindexertest"
)

// setupEnv points the command at srv and clears the other overrides.
func setupEnv(t *testing.T, srv *httptest.Server) {
	t.Helper()
	for _, key := range []string{"ES_USERNAME", "ES_PASSWORD", "REGINDEXER_INDEX", "REGINDEXER_LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	t.Setenv("ES_SCHEME", "http")
	t.Setenv("ES_HOST", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("REGINDEXER_LOG_LEVEL", "error")
	t.Setenv("ELASTIC_APM_ACTIVE", "false")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCompletesWithDocumentErrors(t *testing.T) {
	var bulkRequests, searches atomic.Int64
	mux := http.NewServeMux()
	regindexertest.Handle(mux, regindexertest.Handlers{
		Bulk: func(w http.ResponseWriter, r *http.Request) {
			bulkRequests.Add(1)
			regindexertest.BulkHandler(func(action regindexertest.Action, item *esutil.BulkIndexerResponseItem) {
				if action.ID == "UU_2_2020" {
					item.Status = http.StatusConflict
					item.Error.Type = "version_conflict_engine_exception"
				}
			})(w, r)
		},
		Search: func(w http.ResponseWriter, r *http.Request) {
			searches.Add(1)
			regindexertest.WriteJSON(w, http.StatusOK, regindexertest.SearchResponse(0))
		},
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setupEnv(t, srv)

	docs := writeFile(t, "peraturan.ndjson", `{"metadata":{"Bentuk Singkat":"UU","Nomor":"1","Tahun":"2020"}}
{"metadata":{"Bentuk Singkat":"UU","Nomor":"2","Tahun":"2020"}}
{"metadata":{"Bentuk Singkat":"UU","Nomor":"3","Tahun":"2020"}}
`)
	assert.Equal(t, exitOK, run([]string{docs}))
	assert.Equal(t, int64(1), bulkRequests.Load())
	assert.Equal(t, int64(1), searches.Load())
}

func TestRunUnreachable(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	regindexertest.Handle(mux, regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		},
		Bulk: func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected bulk request")
		},
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setupEnv(t, srv)

	cfg := writeFile(t, "regindexer.yml", "indexer:\n  probeAttempts: 3\n  probeDelay: 1ms\n")
	docs := writeFile(t, "peraturan.json", `[{"metadata":{"Bentuk Singkat":"UU","Nomor":"1","Tahun":"2020"}}]`)
	assert.Equal(t, exitFailure, run([]string{"--config", cfg, docs}))
	assert.Equal(t, int64(3), attempts.Load())
}
