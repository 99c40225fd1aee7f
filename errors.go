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
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is returned when Elasticsearch did not answer any of
	// the connection attempts.
	ErrUnreachable = errors.New("elasticsearch unreachable")

	// ErrSchemaSetup is returned when the target index could not be
	// replaced.
	ErrSchemaSetup = errors.New("index setup failed")
)

const (
	// maxErrorPreview is the number of failed documents detailed per batch.
	maxErrorPreview = 3

	unknownErrorType = "unknown"

	// errorTypeEncoding is recorded for documents that could not be
	// encoded as JSON and were therefore never sent.
	errorTypeEncoding = "document_encoding_exception"
)

// BatchErrorSummary describes the failed documents of one bulk request.
type BatchErrorSummary struct {
	// Count holds the number of failed documents.
	Count int

	// Preview holds the first failed documents, in request order.
	Preview []BulkIndexerResponseItem

	// Remaining holds the number of failed documents not in Preview.
	Remaining int

	// Types holds the number of failures per error type.
	Types map[string]int64
}

// AggregateFailures summarizes failed bulk response items.
func AggregateFailures(failed []BulkIndexerResponseItem) BatchErrorSummary {
	s := BatchErrorSummary{
		Count: len(failed),
		Types: make(map[string]int64),
	}
	for _, item := range failed {
		s.Types[errorType(item)]++
	}
	n := min(len(failed), maxErrorPreview)
	s.Preview = failed[:n:n]
	s.Remaining = len(failed) - n
	return s
}

// MoreMarker returns the truncation marker of the preview, or the empty
// string if every failure is previewed.
func (s BatchErrorSummary) MoreMarker() string {
	if s.Remaining <= 0 {
		return ""
	}
	return fmt.Sprintf("... and %d more errors not shown", s.Remaining)
}

func errorType(item BulkIndexerResponseItem) string {
	if item.Error.Type == "" {
		return unknownErrorType
	}
	return item.Error.Type
}
