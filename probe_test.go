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

package regindexer_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lexin/regindexer"
	"github.com/lexin/regindexer/regindexertest"
)

func TestProbe(t *testing.T) {
	core, observed := observer.New(zap.NewAtomicLevelAt(zapcore.DebugLevel))
	indexer := newTestIndexer(t, regindexertest.Handlers{}, regindexer.Config{Logger: zap.New(core)})

	info, err := indexer.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, regindexertest.Version, info.Version.Number)
	assert.Equal(t, "mock", info.ClusterName)

	entries := observed.FilterMessage("connected to elasticsearch").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["attempt"])
}

func TestProbeRetries(t *testing.T) {
	var attempts atomic.Int64
	client := regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			regindexertest.WriteJSON(w, http.StatusOK, map[string]any{
				"cluster_name": "lexin",
				"version":      map[string]any{"number": "8.4.1"},
			})
		},
	}
	rdr := newManualReader()
	core, observed := observer.New(zap.NewAtomicLevelAt(zapcore.DebugLevel))
	indexer := newTestIndexer(t, client, regindexer.Config{
		Logger:        zap.New(core),
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(rdr)),
	})

	info, err := indexer.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8.4.1", info.Version.Number)
	assert.Equal(t, int64(3), attempts.Load())
	assert.Len(t, observed.FilterMessage("elasticsearch not reachable, retrying").All(), 2)
	assert.Equal(t, map[string]int64{"false": 2, "true": 1},
		counterValues(t, rdr, "elasticsearch.probe.attempts", attribute.Key("success")))
}

func TestProbeUnreachable(t *testing.T) {
	var attempts atomic.Int64
	client := regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		},
		Exists: func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected index request")
		},
		Create: func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected index request")
		},
		Bulk: func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected bulk request")
		},
	}
	core, observed := observer.New(zap.NewAtomicLevelAt(zapcore.DebugLevel))
	indexer := newTestIndexer(t, client, regindexer.Config{Logger: zap.New(core)})

	_, err := indexer.Run(context.Background(), newRegulations(10))
	assert.ErrorIs(t, err, regindexer.ErrUnreachable)
	assert.ErrorContains(t, err, "after 5 attempts")
	assert.Equal(t, int64(5), attempts.Load())

	// No wait follows the last attempt.
	assert.Len(t, observed.FilterMessage("elasticsearch not reachable, retrying").All(), 4)
	assert.Len(t, observed.FilterMessage("elasticsearch unreachable").All(), 1)
}

func TestProbeRequestTimeout(t *testing.T) {
	var attempts atomic.Int64
	client := regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				stallHandler(w, r)
				return
			}
			regindexertest.WriteJSON(w, http.StatusOK, map[string]any{
				"cluster_name": "lexin",
				"version":      map[string]any{"number": "8.4.1"},
			})
		},
	}
	core, observed := observer.New(zap.NewAtomicLevelAt(zapcore.DebugLevel))
	indexer := newTestIndexer(t, client, regindexer.Config{
		Logger:       zap.New(core),
		ProbeTimeout: 50 * time.Millisecond,
	})

	info, err := indexer.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8.4.1", info.Version.Number)
	assert.Equal(t, int64(2), attempts.Load())

	retries := observed.FilterMessage("elasticsearch not reachable, retrying").All()
	require.Len(t, retries, 1)
	assert.Contains(t, retries[0].ContextMap()["error"], "context deadline exceeded")
}

func TestProbeNonOKStatus(t *testing.T) {
	var attempts atomic.Int64
	client := regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			regindexertest.WriteJSON(w, http.StatusNonAuthoritativeInfo, map[string]any{
				"version": map[string]any{"number": "8.4.1"},
			})
		},
	}
	indexer := newTestIndexer(t, client, regindexer.Config{ProbeAttempts: 2})
	_, err := indexer.Probe(context.Background())
	assert.ErrorIs(t, err, regindexer.ErrUnreachable)
	assert.ErrorContains(t, err, "203")
	assert.Equal(t, int64(2), attempts.Load())
}

func TestProbeMissingVersion(t *testing.T) {
	client := regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			regindexertest.WriteJSON(w, http.StatusOK, map[string]any{"name": "proxy"})
		},
	}
	indexer := newTestIndexer(t, client, regindexer.Config{ProbeAttempts: 2})
	_, err := indexer.Probe(context.Background())
	assert.ErrorIs(t, err, regindexer.ErrUnreachable)
	assert.ErrorContains(t, err, "no version")
}

func TestProbeCanceled(t *testing.T) {
	client := regindexertest.Handlers{
		Info: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	}
	indexer := newTestIndexer(t, client, regindexer.Config{ProbeDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := indexer.Probe(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
}
