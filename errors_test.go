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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexin/regindexer"
)

func failedItem(pos int, errType string) regindexer.BulkIndexerResponseItem {
	item := regindexer.BulkIndexerResponseItem{
		DocumentID: fmt.Sprintf("doc_%d_", pos),
		Status:     400,
		Position:   pos,
	}
	item.Error.Type = errType
	return item
}

func TestAggregateFailures(t *testing.T) {
	failed := []regindexer.BulkIndexerResponseItem{
		failedItem(0, "mapper_parsing_exception"),
		failedItem(3, "mapper_parsing_exception"),
		failedItem(7, "version_conflict_engine_exception"),
		failedItem(8, ""),
		failedItem(9, "mapper_parsing_exception"),
	}
	summary := regindexer.AggregateFailures(failed)
	assert.Equal(t, 5, summary.Count)
	assert.Equal(t, failed[:3], summary.Preview)
	assert.Equal(t, 2, summary.Remaining)
	assert.Equal(t, "... and 2 more errors not shown", summary.MoreMarker())
	assert.Equal(t, map[string]int64{
		"mapper_parsing_exception":          3,
		"version_conflict_engine_exception": 1,
		"unknown":                           1,
	}, summary.Types)
}

func TestAggregateFailuresShort(t *testing.T) {
	summary := regindexer.AggregateFailures([]regindexer.BulkIndexerResponseItem{failedItem(4, "x")})
	assert.Equal(t, 1, summary.Count)
	assert.Len(t, summary.Preview, 1)
	assert.Zero(t, summary.Remaining)
	assert.Empty(t, summary.MoreMarker())

	summary = regindexer.AggregateFailures(nil)
	assert.Zero(t, summary.Count)
	assert.Empty(t, summary.Preview)
	assert.Empty(t, summary.Types)
}
