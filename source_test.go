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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexin/regindexer"
)

func TestReadDocuments(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input string
	}{
		{name: "array", input: `[{"metadata":{"Nomor":"1"}}, {"metadata":{"Nomor":"2"}}]`},
		{name: "ndjson", input: "{\"metadata\":{\"Nomor\":\"1\"}}\n{\"metadata\":{\"Nomor\":\"2\"}}\n"},
		{name: "leading_space", input: "\n\t [{\"metadata\":{\"Nomor\":\"1\"}},{\"metadata\":{\"Nomor\":\"2\"}}]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := regindexer.ReadDocuments(strings.NewReader(tc.input))
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "doc_1_", docs[0].ID())
			assert.Equal(t, "doc_2_", docs[1].ID())
		})
	}
}

func TestReadDocumentsNumbers(t *testing.T) {
	docs, err := regindexer.ReadDocuments(strings.NewReader(`[{"metadata":{"Tahun":2003,"Nomor":13}}]`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, json.Number("2003"), docs[0].Metadata()["Tahun"])
	assert.Equal(t, "doc_13_2003", docs[0].ID())
}

func TestReadDocumentsEmpty(t *testing.T) {
	docs, err := regindexer.ReadDocuments(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestReadDocumentsInvalid(t *testing.T) {
	for _, input := range []string{
		`[{"metadata": }]`,
		`[null]`,
		`{"a":1} null`,
		`{"a":1} [`,
	} {
		_, err := regindexer.ReadDocuments(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(plain, []byte(`[{"metadata":{"Nomor":"1"}},{"metadata":{"Nomor":"2"}}]`), 0o644))

	compressed := filepath.Join(dir, "b.ndjson.gz")
	f, err := os.Create(compressed)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("{\"metadata\":{\"Nomor\":\"3\"}}\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	docs, err := regindexer.LoadDocuments(context.Background(), compressed, plain)
	require.NoError(t, err)
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID()
	}
	assert.Equal(t, []string{"doc_3_", "doc_1_", "doc_2_"}, ids)

	_, err = regindexer.LoadDocuments(context.Background(), plain, filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
