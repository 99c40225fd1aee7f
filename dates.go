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
	"strings"
	"unicode/utf8"
)

// DateFields lists the metadata fields holding dates.
var DateFields = []string{
	"Tanggal Penetapan",
	"Tanggal Pengundangan",
	"Tanggal Berlaku",
}

// MonthName maps a source locale month name to its English name.
type MonthName struct {
	From, To string
}

// IndonesianMonths holds the Indonesian month names in calendar order.
var IndonesianMonths = []MonthName{
	{"Januari", "January"},
	{"Februari", "February"},
	{"Maret", "March"},
	{"April", "April"},
	{"Mei", "May"},
	{"Juni", "June"},
	{"Juli", "July"},
	{"Agustus", "August"},
	{"September", "September"},
	{"Oktober", "October"},
	{"November", "November"},
	{"Desember", "December"},
}

var errInvalidDateEncoding = errors.New("date is not valid UTF-8")

// DateNormalizer rewrites month names so that Elasticsearch's English
// "d MMMM yyyy" date format accepts the value.
type DateNormalizer struct {
	// Months is applied in order. If nil, IndonesianMonths is used.
	Months []MonthName
}

// Normalize replaces every occurrence of each known month name in s.
//
// Matching is plain substring containment: a month name embedded in a
// longer word is replaced as well.
func (n DateNormalizer) Normalize(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", errInvalidDateEncoding
	}
	months := n.Months
	if months == nil {
		months = IndonesianMonths
	}
	for _, m := range months {
		if strings.Contains(s, m.From) {
			s = strings.ReplaceAll(s, m.From, m.To)
		}
	}
	return s, nil
}
