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
	"net/http"

	"go.uber.org/zap"

	"github.com/lexin/regindexer/esapi"
)

// AnalyzerName is the analyzer applied to every full-text field.
const AnalyzerName = "custom_target_analyzer"

// DateFormat lists the formats accepted by the date fields of the mapping.
const DateFormat = "d MMMM yyyy||dd MMMM yyyy||yyyy-MM-dd||strict_date_optional_time"

func keywordField() map[string]any { return map[string]any{"type": "keyword"} }

// plainTextField is a text field analyzed with the standard analyzer.
func plainTextField() map[string]any { return map[string]any{"type": "text"} }

func textField() map[string]any {
	return map[string]any{"type": "text", "analyzer": AnalyzerName}
}

// textKeywordField is a text field with an exact "keyword" subfield.
func textKeywordField() map[string]any {
	f := textField()
	f["fields"] = map[string]any{"keyword": keywordField()}
	return f
}

func dateField() map[string]any {
	return map[string]any{"type": "date", "format": DateFormat}
}

// IndexSchema returns the settings and mappings of the regulation index,
// analyzing text with the stop words and stemmer of language.
func IndexSchema(language string) map[string]any {
	if language == "" {
		language = DefaultLanguage
	}
	stop := language + "_stop"
	stemmer := language + "_stemmer"

	metadata := map[string]any{
		"Tipe Dokumen":     keywordField(),
		MetaTitle:          textField(),
		"T.E.U.":           plainTextField(),
		MetaNumber:         keywordField(),
		"Bentuk":           keywordField(),
		MetaFormShort:      keywordField(),
		MetaYear:           keywordField(),
		"Tempat Penetapan": keywordField(),
		"Sumber":           plainTextField(),
		"Subjek":           keywordField(),
		"Status":           keywordField(),
		"Bahasa":           keywordField(),
		"Lokasi":           keywordField(),
		"Bidang":           keywordField(),
	}
	for _, field := range DateFields {
		metadata[field] = dateField()
	}

	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"filter": map[string]any{
					stop:    map[string]any{"type": "stop", "stopwords": "_" + language + "_"},
					stemmer: map[string]any{"type": "stemmer", "language": language},
				},
				"analyzer": map[string]any{
					AnalyzerName: map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", stop, stemmer},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				FieldMetadata: map[string]any{"properties": metadata},
				FieldRelations: map[string]any{"type": "object"},
				FieldFiles: map[string]any{
					"type": "nested",
					"properties": map[string]any{
						"file_id":      keywordField(),
						"filename":     plainTextField(),
						"download_url": plainTextField(),
						"content":      textField(),
					},
				},
				FieldAbstract: textKeywordField(),
				FieldNotes:    textKeywordField(),
			},
		},
	}
}

// EnsureIndex replaces the target index with an empty one created from
// IndexSchema. Existing documents are lost.
//
// Any failure is returned wrapping ErrSchemaSetup.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	index := i.config.Index
	exists, err := i.indexExists(ctx)
	if err != nil {
		return fmt.Errorf("%w: checking index %q: %w", ErrSchemaSetup, index, err)
	}
	if exists {
		i.logger.Info("deleting existing index")
		if err := i.deleteIndex(ctx); err != nil {
			return fmt.Errorf("%w: deleting index %q: %w", ErrSchemaSetup, index, err)
		}
	}
	if err := i.createIndex(ctx); err != nil {
		return fmt.Errorf("%w: creating index %q: %w", ErrSchemaSetup, index, err)
	}
	i.logger.Info("created index", zap.String("language", i.config.Language))
	return nil
}

func (i *Indexer) indexExists(ctx context.Context) (bool, error) {
	ctx, cancel := i.requestContext(ctx)
	defer cancel()
	res, err := esapi.IndicesExistsRequest{Index: i.config.Index}.Do(ctx, i.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("unexpected response: %s", res)
}

func (i *Indexer) deleteIndex(ctx context.Context) error {
	ctx, cancel := i.requestContext(ctx)
	defer cancel()
	res, err := esapi.IndicesDeleteRequest{
		Index:         i.config.Index,
		MasterTimeout: i.config.RequestTimeout,
	}.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// The index may have been removed since it was checked.
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected response: %s", res)
	}
	return nil
}

func (i *Indexer) createIndex(ctx context.Context) error {
	body, err := jsonAPI.Marshal(IndexSchema(i.config.Language))
	if err != nil {
		return fmt.Errorf("error encoding index schema: %w", err)
	}
	ctx, cancel := i.requestContext(ctx)
	defer cancel()
	res, err := esapi.IndicesCreateRequest{
		Index:         i.config.Index,
		Body:          bytes.NewReader(body),
		MasterTimeout: i.config.RequestTimeout,
	}.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("unexpected response: %s", res)
	}
	return nil
}
