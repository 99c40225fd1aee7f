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
	"strings"

	"go.uber.org/zap"
)

// Preprocessor prepares documents for indexing.
type Preprocessor struct {
	Logger     *zap.Logger
	Normalizer DateNormalizer

	// DateFields lists the metadata fields normalized as dates.
	// If nil, DateFields is used.
	DateFields []string

	// OnDrop is called for every date field removed from a document.
	OnDrop func(field string)
}

// Preprocess returns a copy of doc ready to be indexed. doc is not
// modified.
//
// The top level mapping and the metadata mapping are copied; files and
// relations are shared with doc. Date fields that are null, empty or not
// strings are removed, the remaining ones are trimmed and normalized.
func (p *Preprocessor) Preprocess(doc Document) Document {
	out := maps.Clone(doc)
	meta := doc.Metadata()
	if meta == nil {
		return out
	}
	meta = maps.Clone(meta)
	out[FieldMetadata] = meta

	fields := p.DateFields
	if fields == nil {
		fields = DateFields
	}
	for _, field := range fields {
		v, ok := meta[field]
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString || s == "" {
			p.drop(meta, field)
			continue
		}
		normalized, err := p.Normalizer.Normalize(strings.TrimSpace(s))
		if err != nil {
			p.logger().Warn("dropping unparsable date",
				zap.String("field", field),
				zap.String("value", s),
				zap.String("document_id", out.ID()),
				zap.Error(err),
			)
			p.drop(meta, field)
			continue
		}
		meta[field] = normalized
	}
	return out
}

func (p *Preprocessor) drop(meta map[string]any, field string) {
	delete(meta, field)
	if p.OnDrop != nil {
		p.OnDrop(field)
	}
}

func (p *Preprocessor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
