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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unsafe"

	"github.com/klauspost/compress/gzip"
	"go.elastic.co/fastjson"

	jsoniter "github.com/json-iterator/go"

	"github.com/lexin/regindexer/esapi"
)

// BulkIndexer fills a single _bulk request body at a time and sends it to
// Elasticsearch on Flush.
//
// Documents are written with the "index" action, so a document whose ID
// already exists replaces the stored one.
type BulkIndexer struct {
	config       BulkIndexerConfig
	itemsAdded   int
	bytesFlushed int
	jsonw        fastjson.Writer
	writer       io.Writer
	gzipw        *gzip.Writer
	buf          bytes.Buffer
}

// BulkIndexerConfig holds configuration for BulkIndexer.
type BulkIndexerConfig struct {
	// Client holds the Elasticsearch client.
	Client esapi.Transport

	// CompressionLevel holds the gzip compression level, from 0 (gzip.NoCompression)
	// to 9 (gzip.BestCompression). The special value -1 (gzip.DefaultCompression)
	// selects the default compression level.
	CompressionLevel int
}

// BulkIndexerItem is a single document to be added to a bulk request.
type BulkIndexerItem struct {
	Index      string
	DocumentID string
	Body       io.WriterTo
}

// BulkIndexerResponseStat summarizes a _bulk response.
type BulkIndexerResponseStat struct {
	// Took holds the server side processing time in milliseconds.
	Took int64

	// HasErrors mirrors the top level "errors" flag of the response. Items
	// are only reported as failed when it is set.
	HasErrors bool

	// Items holds the number of result items in the response.
	Items int

	// Indexed holds the number of documents of the request that were not
	// reported as failed.
	Indexed int64

	// FailedDocs holds the items with a status of 400 or above, in request
	// order.
	FailedDocs []BulkIndexerResponseItem
}

// BulkIndexerResponseItem represents the Elasticsearch response item.
type BulkIndexerResponseItem struct {
	Index      string `json:"_index"`
	DocumentID string `json:"_id"`
	Status     int    `json:"status"`

	// Position holds the index of the document in the request.
	Position int

	Error struct {
		Type     string `json:"type"`
		Reason   string `json:"reason"`
		CausedBy struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"caused_by"`
	} `json:"error,omitempty"`
}

// Failed reports whether Elasticsearch rejected the document.
func (item BulkIndexerResponseItem) Failed() bool {
	return item.Status >= http.StatusBadRequest
}

// ErrorFlushFailed is returned by Flush when Elasticsearch answers the bulk
// request with a status other than 200.
type ErrorFlushFailed struct {
	StatusCode int
	Body       string
}

func (e ErrorFlushFailed) Error() string {
	return fmt.Sprintf("flush failed: [%d %s] %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func init() {
	jsoniter.RegisterTypeDecoderFunc("regindexer.BulkIndexerResponseStat", func(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
		stat := (*BulkIndexerResponseStat)(ptr)
		iter.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
			switch s {
			case "took":
				stat.Took = i.ReadInt64()
			case "errors":
				stat.HasErrors = i.ReadBool()
			case "items":
				var idx int
				i.ReadArrayCB(func(i *jsoniter.Iterator) bool {
					return i.ReadMapCB(func(i *jsoniter.Iterator, _ string) bool {
						item := readResponseItem(i)
						item.Position = idx
						idx++
						stat.Items++
						if item.Failed() {
							stat.FailedDocs = append(stat.FailedDocs, item)
						}
						return true
					})
				})
			default:
				i.Skip()
			}
			return true
		})
	})
}

func readResponseItem(i *jsoniter.Iterator) BulkIndexerResponseItem {
	var item BulkIndexerResponseItem
	i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
		switch s {
		case "_index":
			item.Index = i.ReadString()
		case "_id":
			item.DocumentID = i.ReadString()
		case "status":
			item.Status = i.ReadInt()
		case "error":
			switch i.WhatIsNext() {
			case jsoniter.ObjectValue:
				i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
					switch s {
					case "type":
						item.Error.Type = i.ReadString()
					case "reason":
						item.Error.Reason = i.ReadString()
					case "caused_by":
						i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
							switch s {
							case "type":
								item.Error.CausedBy.Type = i.ReadString()
							case "reason":
								item.Error.CausedBy.Reason = i.ReadString()
							default:
								i.Skip()
							}
							return true
						})
					default:
						i.Skip()
					}
					return true
				})
			case jsoniter.StringValue:
				// Older clusters and some proxies report the error as a
				// plain string.
				item.Error.Reason = i.ReadString()
			default:
				i.Skip()
			}
		default:
			i.Skip()
		}
		return true
	})
	// An item without a status cannot be confirmed as written.
	if item.Status == 0 {
		item.Status = http.StatusInternalServerError
	}
	return item
}

// NewBulkIndexer returns a bulk indexer that issues bulk requests to Elasticsearch.
func NewBulkIndexer(cfg BulkIndexerConfig) (*BulkIndexer, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}

	if cfg.CompressionLevel < -1 || cfg.CompressionLevel > 9 {
		return nil, fmt.Errorf(
			"expected CompressionLevel in range [-1,9], got %d",
			cfg.CompressionLevel,
		)
	}

	b := &BulkIndexer{config: cfg}
	if cfg.CompressionLevel != gzip.NoCompression {
		b.gzipw, _ = gzip.NewWriterLevel(&b.buf, cfg.CompressionLevel)
		b.writer = b.gzipw
	} else {
		b.writer = &b.buf
	}
	return b, nil
}

func (b *BulkIndexer) resetBuf() {
	b.itemsAdded = 0
	b.buf.Reset()
	if b.gzipw != nil {
		b.gzipw.Reset(&b.buf)
	}
}

// Items returns the number of buffered items.
func (b *BulkIndexer) Items() int {
	return b.itemsAdded
}

// Len returns the number of buffered bytes.
func (b *BulkIndexer) Len() int {
	return b.buf.Len()
}

// BytesFlushed returns the number of bytes sent by the last Flush.
func (b *BulkIndexer) BytesFlushed() int {
	return b.bytesFlushed
}

// Add encodes an item in the buffer.
func (b *BulkIndexer) Add(item BulkIndexerItem) error {
	if item.Body == nil {
		return errMissingBody
	}
	if err := b.writeMeta(item.Index, item.DocumentID); err != nil {
		return fmt.Errorf("failed to write bulk action: %w", err)
	}
	if _, err := item.Body.WriteTo(b.writer); err != nil {
		return fmt.Errorf("failed to write bulk indexer item: %w", err)
	}
	if _, err := b.writer.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	b.itemsAdded++
	return nil
}

func (b *BulkIndexer) writeMeta(index, documentID string) error {
	b.jsonw.RawString(`{"index":{`)
	if index != "" {
		b.jsonw.RawString(`"_index":`)
		b.jsonw.String(index)
	}
	if documentID != "" {
		if index != "" {
			b.jsonw.RawByte(',')
		}
		b.jsonw.RawString(`"_id":`)
		b.jsonw.String(documentID)
	}
	b.jsonw.RawString("}}\n")
	_, err := b.writer.Write(b.jsonw.Bytes())
	b.jsonw.Reset()
	return err
}

// Flush executes a bulk request if there are any items buffered, and clears
// out the buffer whatever the outcome.
//
// A transport failure, a status other than 200 or an unreadable response
// body is returned as an error; per-document failures are reported in the
// returned stat.
func (b *BulkIndexer) Flush(ctx context.Context) (BulkIndexerResponseStat, error) {
	n := b.itemsAdded
	if n == 0 {
		return BulkIndexerResponseStat{}, nil
	}
	defer b.resetBuf()
	b.bytesFlushed = 0

	if b.gzipw != nil {
		if err := b.gzipw.Close(); err != nil {
			return BulkIndexerResponseStat{}, fmt.Errorf("failed closing the gzip writer: %w", err)
		}
	}

	// The server side timeout follows the request deadline.
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), time.Millisecond)
	}
	req := esapi.BulkRequest{
		Body:    &b.buf,
		Timeout: timeout,
		Gzip:    b.gzipw != nil,
		FilterPath: []string{
			"took", "errors",
			"items.*._index", "items.*._id", "items.*.status",
			"items.*.error.type", "items.*.error.reason",
			"items.*.error.caused_by.type", "items.*.error.caused_by.reason",
		},
	}

	bytesFlushed := b.buf.Len()
	res, err := req.Do(ctx, b.config.Client)
	if err != nil {
		return BulkIndexerResponseStat{}, fmt.Errorf("failed to execute the request: %w", err)
	}
	defer res.Body.Close()

	// Record the number of flushed bytes only when err == nil. The body may
	// not have been sent otherwise.
	b.bytesFlushed = bytesFlushed

	var resp BulkIndexerResponseStat
	if res.StatusCode != http.StatusOK {
		return resp, ErrorFlushFailed{
			StatusCode: res.StatusCode,
			Body:       esapi.BodyExcerpt(res.Body, 500),
		}
	}
	if err := jsoniter.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("error decoding bulk response: %w", err)
	}

	if !resp.HasErrors {
		resp.FailedDocs = nil
	}
	// Items beyond the request cannot be matched to a document.
	for len(resp.FailedDocs) > 0 && resp.FailedDocs[len(resp.FailedDocs)-1].Position >= n {
		resp.FailedDocs = resp.FailedDocs[:len(resp.FailedDocs)-1]
	}
	resp.Indexed = int64(n - len(resp.FailedDocs))
	return resp, nil
}

var (
	errMissingClient = errors.New("client is nil")
	errMissingBody   = errors.New("missing document body")
)
