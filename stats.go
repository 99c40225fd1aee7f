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
	"maps"
	"time"
)

// RunStatistics holds the outcome of a Submit call.
//
// Total always equals Indexed + Failed + BatchFailed once every bulk
// response could be read.
type RunStatistics struct {
	// Total holds the number of documents seen.
	Total int64

	// Indexed holds the number of documents Elasticsearch accepted.
	Indexed int64

	// Failed holds the number of documents Elasticsearch rejected
	// individually, plus documents that could not be encoded.
	Failed int64

	// BatchFailed holds the number of documents of bulk requests that
	// failed as a whole.
	BatchFailed int64

	// Batches holds the number of bulk requests attempted.
	Batches int

	// FailedBatches holds the number of bulk requests that failed as a
	// whole.
	FailedBatches int

	// Elapsed holds the wall time of the run.
	Elapsed time.Duration

	// ErrorTypes holds the number of rejected documents per error type.
	ErrorTypes map[string]int64
}

func newRunStatistics() RunStatistics {
	return RunStatistics{ErrorTypes: make(map[string]int64)}
}

func (s *RunStatistics) mergeErrors(types map[string]int64) {
	for t, n := range types {
		s.ErrorTypes[t] += n
	}
}

func (s *RunStatistics) recordBatch(indexed int64, failed BatchErrorSummary) {
	s.Batches++
	s.Total += indexed + int64(failed.Count)
	s.Indexed += indexed
	s.Failed += int64(failed.Count)
	s.mergeErrors(failed.Types)
}

// recordFailedBatch records a bulk request that failed as a whole. sent
// holds the number of documents in the request, unsent describes the
// documents of the batch that never made it into the request.
func (s *RunStatistics) recordFailedBatch(sent int, unsent BatchErrorSummary) {
	s.Batches++
	s.FailedBatches++
	s.Total += int64(sent + unsent.Count)
	s.BatchFailed += int64(sent)
	s.Failed += int64(unsent.Count)
	s.mergeErrors(unsent.Types)
}

// clone returns a copy that shares no state with s.
func (s RunStatistics) clone() RunStatistics {
	s.ErrorTypes = maps.Clone(s.ErrorTypes)
	return s
}
