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
	"fmt"

	"github.com/lexin/regindexer/esapi"
)

// NoTitle is reported for hits whose source carries no title.
const NoTitle = "No title"

// VerificationHit is one document matched by the verification search.
type VerificationHit struct {
	ID    string
	Title string
	Score float64
}

// VerificationResult holds the outcome of a verification search.
type VerificationResult struct {
	Term  string
	Total int64
	Hits  []VerificationHit
}

// VerificationQuery returns a search body matching term in the abstract,
// the attachment contents or the notes of a document.
func VerificationQuery(term string, size int) map[string]any {
	match := func(field string) map[string]any {
		return map[string]any{"match": map[string]any{field: term}}
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should": []any{
					match(FieldAbstract),
					match(FieldFiles + ".content"),
					match(FieldNotes),
				},
			},
		},
		"size": size,
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Verify searches the index for term and returns at most size of the best
// matching documents, best first. A size of zero or less means
// Config.VerifySize.
//
// Each call issues a fresh search.
func (i *Indexer) Verify(ctx context.Context, term string, size int) (VerificationResult, error) {
	if size <= 0 {
		size = i.config.VerifySize
	}
	result := VerificationResult{Term: term}
	body, err := jsonAPI.Marshal(VerificationQuery(term, size))
	if err != nil {
		return result, fmt.Errorf("error encoding search query: %w", err)
	}

	ctx, cancel := i.requestContext(ctx)
	defer cancel()
	res, err := esapi.SearchRequest{
		Index: i.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return result, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return result, fmt.Errorf("search failed: %s", res)
	}

	var resp searchResponse
	if err := jsonAPI.NewDecoder(res.Body).Decode(&resp); err != nil {
		return result, fmt.Errorf("error decoding search response: %w", err)
	}
	result.Total = resp.Hits.Total.Value
	hits := resp.Hits.Hits
	if len(hits) > size {
		hits = hits[:size]
	}
	result.Hits = make([]VerificationHit, 0, len(hits))
	for _, hit := range hits {
		title := hit.Source.Title()
		if title == "" {
			title = NoTitle
		}
		result.Hits = append(result.Hits, VerificationHit{
			ID:    hit.ID,
			Title: title,
			Score: hit.Score,
		})
	}
	return result, nil
}
