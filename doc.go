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

// Package regindexer loads pre-parsed Indonesian regulation documents into an
// Elasticsearch index.
//
// A run probes the cluster until it answers, replaces the target index with
// a fixed schema, and then submits the documents in fixed-size _bulk
// requests, one request at a time. Dates in the document metadata have their
// Indonesian month names rewritten to English before submission so that the
// index date formats can parse them.
//
// Per-document and per-request failures are counted and logged but never
// abort a run. Only an unreachable cluster or a failed schema setup does.
package regindexer
