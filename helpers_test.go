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
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/lexin/regindexer"
	"github.com/lexin/regindexer/regindexertest"
)

// newRegulation returns a document identified as UU_{number}_2020.
func newRegulation(number int) regindexer.Document {
	return regindexer.Document{
		"metadata": map[string]any{
			"Judul":             fmt.Sprintf("Undang-Undang Nomor %d Tahun 2020", number),
			"Bentuk Singkat":    "UU",
			"Nomor":             fmt.Sprint(number),
			"Tahun":             "2020",
			"Tanggal Penetapan": "2 Desember 2020",
		},
		"files": []any{map[string]any{
			"file_id":  fmt.Sprint(number),
			"filename": fmt.Sprintf("uu%d.pdf", number),
			"content":  "peraturan",
		}},
		"abstrak": "peraturan tentang cipta kerja",
	}
}

func newRegulations(n int) []regindexer.Document {
	docs := make([]regindexer.Document, n)
	for i := range docs {
		docs[i] = newRegulation(i)
	}
	return docs
}

func newTestIndexer(t testing.TB, h regindexertest.Handlers, cfg regindexer.Config) *regindexer.Indexer {
	t.Helper()
	if cfg.ProbeDelay == 0 {
		cfg.ProbeDelay = time.Millisecond
	}
	client := regindexertest.NewMockElasticsearchClient(t, h)
	indexer, err := regindexer.New(client, cfg)
	require.NoError(t, err)
	return indexer
}

// stallHandler holds the request until the client abandons it.
func stallHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(10 * time.Second):
	}
}

func newManualReader() *sdkmetric.ManualReader {
	return sdkmetric.NewManualReader(sdkmetric.WithTemporalitySelector(
		func(ik sdkmetric.InstrumentKind) metricdata.Temporality {
			return metricdata.CumulativeTemporality
		},
	))
}

// counterValues collects rdr and returns the data points of the named
// counter, keyed by the value of the attribute key.
func counterValues(t testing.TB, rdr sdkmetric.Reader, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, rdr.Collect(context.Background(), &rm))
	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				values[v.Emit()] += dp.Value
			}
		}
	}
	return values
}
