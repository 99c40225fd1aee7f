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

package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexin/regindexer"
)

// config is the configuration of a regindexer run.
type config struct {
	Elasticsearch elasticsearchConfig `yaml:"elasticsearch"`
	Indexer       indexerConfig       `yaml:"indexer"`
	Logging       loggingConfig       `yaml:"logging"`
	APM           apmConfig           `yaml:"apm"`
}

type elasticsearchConfig struct {
	Host     string `yaml:"host"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// URL returns the base URL of the cluster.
func (c elasticsearchConfig) URL() string {
	u := url.URL{Scheme: c.Scheme, Host: c.Host}
	return u.String()
}

type indexerConfig struct {
	Index            string        `yaml:"index"`
	BatchSize        int           `yaml:"batchSize"`
	CompressionLevel int           `yaml:"compressionLevel"`
	Language         string        `yaml:"language"`
	ProbeAttempts    int           `yaml:"probeAttempts"`
	ProbeDelay       time.Duration `yaml:"probeDelay"`
	ProbeTimeout     time.Duration `yaml:"probeTimeout"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	BulkTimeout      time.Duration `yaml:"bulkTimeout"`
	VerifyTerm       string        `yaml:"verifyTerm"`
	VerifySize       int           `yaml:"verifySize"`
}

type loggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type apmConfig struct {
	Active bool `yaml:"active"`
}

// loadConfig reads a YAML config file (if provided) and applies environment
// variable overrides.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *config {
	return &config{
		Elasticsearch: elasticsearchConfig{
			Host:     "chat.lexin.cs.ui.ac.id",
			Scheme:   "https",
			Username: "elastic",
		},
		Indexer: indexerConfig{
			Index:          regindexer.DefaultIndex,
			BatchSize:      regindexer.DefaultBatchSize,
			Language:       regindexer.DefaultLanguage,
			ProbeAttempts:  5,
			ProbeDelay:     5 * time.Second,
			ProbeTimeout:   30 * time.Second,
			RequestTimeout: 30 * time.Second,
			BulkTimeout:    60 * time.Second,
			VerifyTerm:     regindexer.DefaultVerifyTerm,
			VerifySize:     5,
		},
		Logging: loggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides reads ES_* and REGINDEXER_* environment variables and
// overrides the corresponding config fields.
func applyEnvOverrides(cfg *config) error {
	if v := os.Getenv("ES_HOST"); v != "" {
		cfg.Elasticsearch.Host = v
	}
	if v := os.Getenv("ES_SCHEME"); v != "" {
		cfg.Elasticsearch.Scheme = v
	}
	if v := os.Getenv("ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}
	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	if v := os.Getenv("REGINDEXER_INDEX"); v != "" {
		cfg.Indexer.Index = v
	}
	if v := os.Getenv("REGINDEXER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REGINDEXER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ELASTIC_APM_ACTIVE"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing ELASTIC_APM_ACTIVE: %w", err)
		}
		cfg.APM.Active = active
	}
	return nil
}

// indexerConfig returns the library configuration for cfg. Observability
// fields are left for the caller to fill.
func (cfg *config) indexerConfig() regindexer.Config {
	return regindexer.Config{
		Index:            cfg.Indexer.Index,
		BatchSize:        cfg.Indexer.BatchSize,
		CompressionLevel: cfg.Indexer.CompressionLevel,
		Language:         cfg.Indexer.Language,
		ProbeAttempts:    cfg.Indexer.ProbeAttempts,
		ProbeDelay:       cfg.Indexer.ProbeDelay,
		ProbeTimeout:     cfg.Indexer.ProbeTimeout,
		RequestTimeout:   cfg.Indexer.RequestTimeout,
		BulkTimeout:      cfg.Indexer.BulkTimeout,
		VerifyTerm:       cfg.Indexer.VerifyTerm,
		VerifySize:       cfg.Indexer.VerifySize,
	}
}
