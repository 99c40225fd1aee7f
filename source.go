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

package regindexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

// jsonAPI encodes documents and request bodies. Numbers are decoded as
// json.Number so that documents are sent back exactly as read.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var errNotDocument = errors.New("not a JSON object")

// ReadDocuments decodes the documents of r. r holds either a single JSON
// array of documents, or a stream of documents separated by whitespace
// (such as newline delimited JSON).
func ReadDocuments(r io.Reader) ([]Document, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := jsonAPI.NewDecoder(br)
	if first == '[' {
		var docs []Document
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("error decoding document array: %w", err)
		}
		for n, doc := range docs {
			if doc == nil {
				return nil, fmt.Errorf("document %d: %w", n, errNotDocument)
			}
		}
		return docs, nil
	}

	var docs []Document
	for dec.More() {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding document %d: %w", len(docs), err)
		}
		if doc == nil {
			return nil, fmt.Errorf("document %d: %w", len(docs), errNotDocument)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// OpenDocuments reads the documents of the file at path. Files ending in
// ".gz" are decompressed.
func OpenDocuments(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	docs, err := ReadDocuments(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// LoadDocuments reads the files at paths concurrently and returns their
// documents in the order of paths. The first error cancels the remaining
// reads.
func LoadDocuments(ctx context.Context, paths ...string) ([]Document, error) {
	results := make([][]Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for n, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs, err := OpenDocuments(path)
			if err != nil {
				return err
			}
			results[n] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var total int
	for _, docs := range results {
		total += len(docs)
	}
	all := make([]Document, 0, total)
	for _, docs := range results {
		all = append(all, docs...)
	}
	return all, nil
}
