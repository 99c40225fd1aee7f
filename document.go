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
	"encoding/json"
	"fmt"
)

// Document field names.
const (
	FieldMetadata  = "metadata"
	FieldRelations = "relations"
	FieldFiles     = "files"
	FieldAbstract  = "abstrak"
	FieldNotes     = "catatan"

	MetaTitle     = "Judul"
	MetaNumber    = "Nomor"
	MetaFormShort = "Bentuk Singkat"
	MetaYear      = "Tahun"
)

// Document is a single regulation as produced by the upstream scraper.
//
// It is kept as a generic mapping so that fields unknown to the indexer,
// including the open-ended relations, reach Elasticsearch unchanged.
type Document map[string]any

// FileAttachment is one entry of a document's files.
type FileAttachment struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
}

// Metadata returns the metadata mapping, or nil if the document has none.
func (d Document) Metadata() map[string]any {
	m, _ := d[FieldMetadata].(map[string]any)
	return m
}

// Title returns the document title, or the empty string.
func (d Document) Title() string {
	s, _ := d.Metadata()[MetaTitle].(string)
	return s
}

// ID returns the identifier the document is indexed under:
// "{Bentuk Singkat}_{Nomor}_{Tahun}". A missing form defaults to "doc",
// a missing number or year to the empty string.
//
// Distinct regulations sharing form, number and year map to the same
// identifier, and the one submitted last wins.
func (d Document) ID() string {
	meta := d.Metadata()
	return metaString(meta, MetaFormShort, "doc") + "_" +
		metaString(meta, MetaNumber, "") + "_" +
		metaString(meta, MetaYear, "")
}

// Attachments returns the document files. Entries that are not objects are
// skipped.
func (d Document) Attachments() []FileAttachment {
	files, _ := d[FieldFiles].([]any)
	out := make([]FileAttachment, 0, len(files))
	for _, f := range files {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, FileAttachment{
			FileID:      metaString(m, "file_id", ""),
			Filename:    metaString(m, "filename", ""),
			DownloadURL: metaString(m, "download_url", ""),
			Content:     metaString(m, "content", ""),
		})
	}
	return out
}

func metaString(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case nil:
		return def
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
