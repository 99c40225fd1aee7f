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
	"time"

	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultIndex is the index regulation documents are loaded into.
	DefaultIndex = "peraturan_indonesia"

	// DefaultBatchSize is the number of documents sent per _bulk request.
	DefaultBatchSize = 50

	// DefaultLanguage selects the stop word list and stemmer of the
	// index analyzer.
	DefaultLanguage = "indonesian"

	// DefaultVerifyTerm is searched for after loading.
	DefaultVerifyTerm = "peraturan"
)

// Config holds configuration for Indexer.
type Config struct {
	// Logger holds an optional Logger to use for logging the run progress.
	//
	// If Logger is nil, logging will be disabled.
	Logger *zap.Logger

	// Tracer holds an optional apm.Tracer to use for tracing bulk requests
	// to Elasticsearch. Each bulk request is traced as a transaction.
	//
	// If Tracer is nil, requests will not be traced.
	Tracer *apm.Tracer

	// TracerProvider holds an optional OTel TracerProvider. When set, every
	// bulk request is recorded as a span.
	TracerProvider trace.TracerProvider

	// MeterProvider holds the OTel MeterProvider to be used to create and
	// record indexer metrics.
	//
	// If unset, the global OTel MeterProvider will be used, if that is unset,
	// no metrics will be recorded.
	MeterProvider metric.MeterProvider

	// MetricAttributes holds any extra attributes to set in the recorded
	// metrics.
	MetricAttributes attribute.Set

	// Index holds the name of the index documents are loaded into. The
	// index is dropped and recreated on every run.
	//
	// If Index is empty, DefaultIndex will be used.
	Index string

	// BatchSize holds the number of documents per bulk request.
	//
	// If BatchSize is zero, the default of 50 will be used.
	BatchSize int

	// CompressionLevel holds the gzip compression level, from 0 (gzip.NoCompression)
	// to 9 (gzip.BestCompression). Higher values provide greater compression, at a
	// greater cost of CPU. The special value -1 (gzip.DefaultCompression) selects the
	// default compression level.
	CompressionLevel int

	// ProbeAttempts holds the number of connection attempts made before the
	// cluster is considered unreachable.
	//
	// If ProbeAttempts is zero, the default of 5 will be used.
	ProbeAttempts int

	// ProbeDelay holds the wait between two connection attempts.
	//
	// If ProbeDelay is zero, the default of 5 seconds will be used.
	ProbeDelay time.Duration

	// ProbeTimeout holds the timeout of a single connection attempt.
	//
	// If ProbeTimeout is zero, the default of 30 seconds will be used.
	ProbeTimeout time.Duration

	// RequestTimeout holds the timeout for index management and search
	// requests.
	//
	// If RequestTimeout is zero, the default of 30 seconds will be used.
	RequestTimeout time.Duration

	// BulkTimeout holds the timeout of a single bulk request.
	//
	// If BulkTimeout is zero, the default of 60 seconds will be used.
	BulkTimeout time.Duration

	// Language holds the analysis language of the index.
	//
	// If Language is empty, DefaultLanguage will be used.
	Language string

	// VerifyTerm holds the term searched for once all documents have been
	// submitted. If VerifyTerm is empty, Run skips the verification search.
	VerifyTerm string

	// VerifySize holds the number of verification hits reported.
	//
	// If VerifySize is zero, the default of 5 will be used.
	VerifySize int
}

// DefaultConfig returns a copy of cfg with any zero values replaced by
// their defaults.
func DefaultConfig(cfg Config) Config {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ProbeAttempts <= 0 {
		cfg.ProbeAttempts = 5
	}
	if cfg.ProbeDelay <= 0 {
		cfg.ProbeDelay = 5 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.BulkTimeout <= 0 {
		cfg.BulkTimeout = 60 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.VerifySize <= 0 {
		cfg.VerifySize = 5
	}
	return cfg
}

// Validate checks the configuration for values defaults cannot fix.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.CompressionLevel < -1 || cfg.CompressionLevel > 9 {
		errs = append(errs, fmt.Errorf(
			"expected CompressionLevel in range [-1,9], got %d",
			cfg.CompressionLevel,
		))
	}
	if cfg.Index != "" && !validIndexName(cfg.Index) {
		errs = append(errs, fmt.Errorf("invalid index name %q", cfg.Index))
	}
	return errors.Join(errs...)
}

// validIndexName reports whether name is usable as a path segment and
// follows the Elasticsearch index naming rules we rely on.
func validIndexName(name string) bool {
	if name == "." || name == ".." || len(name) > 255 {
		return false
	}
	switch name[0] {
	case '-', '_', '+':
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			return false
		case r == '\\', r == '/', r == '*', r == '?', r == '"', r == '<',
			r == '>', r == '|', r == ' ', r == ',', r == '#', r == ':':
			return false
		}
	}
	return true
}
