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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexin/regindexer"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"ES_HOST", "ES_SCHEME", "ES_USERNAME", "ES_PASSWORD", "REGINDEXER_INDEX", "REGINDEXER_LOG_LEVEL", "REGINDEXER_LOG_FORMAT", "ELASTIC_APM_ACTIVE"} {
		t.Setenv(key, "")
	}
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.lexin.cs.ui.ac.id", cfg.Elasticsearch.URL())
	assert.Equal(t, "elastic", cfg.Elasticsearch.Username)
	assert.Empty(t, cfg.Elasticsearch.Password)
	assert.False(t, cfg.APM.Active)

	icfg := cfg.indexerConfig()
	assert.Equal(t, regindexer.DefaultIndex, icfg.Index)
	assert.Equal(t, regindexer.DefaultBatchSize, icfg.BatchSize)
	assert.Equal(t, regindexer.DefaultVerifyTerm, icfg.VerifyTerm)
	assert.Equal(t, 60*time.Second, icfg.BulkTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regindexer.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
elasticsearch:
  host: localhost:9200
  scheme: http
  password: from-file
indexer:
  index: peraturan_test
  batchSize: 200
  probeDelay: 250ms
  verifyTerm: pajak
logging:
  level: debug
`), 0o644))
	t.Setenv("ES_PASSWORD", "from-env")
	t.Setenv("ELASTIC_APM_ACTIVE", "true")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.URL())
	assert.Equal(t, "from-env", cfg.Elasticsearch.Password)
	assert.Equal(t, "elastic", cfg.Elasticsearch.Username)
	assert.Equal(t, "peraturan_test", cfg.Indexer.Index)
	assert.Equal(t, 200, cfg.Indexer.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Indexer.ProbeDelay)
	assert.Equal(t, 5, cfg.Indexer.ProbeAttempts)
	assert.Equal(t, "pajak", cfg.Indexer.VerifyTerm)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.APM.Active)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("indexer: [\n"), 0o644))
	_, err = loadConfig(path)
	assert.Error(t, err)

	t.Setenv("ELASTIC_APM_ACTIVE", "maybe")
	_, err = loadConfig("")
	assert.Error(t, err)
}

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--host", "es:9200", "--batch-size", "10", "--no-verify", "--log-level", "warn"}))

	var f flags
	f.host, _ = cmd.Flags().GetString("host")
	f.batchSize, _ = cmd.Flags().GetInt("batch-size")
	f.noVerify, _ = cmd.Flags().GetBool("no-verify")
	f.logLevel, _ = cmd.Flags().GetString("log-level")

	cfg := defaultConfig()
	f.apply(cmd, cfg)
	assert.Equal(t, "es:9200", cfg.Elasticsearch.Host)
	assert.Equal(t, 10, cfg.Indexer.BatchSize)
	assert.Empty(t, cfg.Indexer.VerifyTerm)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, regindexer.DefaultIndex, cfg.Indexer.Index)
}

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, exitFailure, run(nil))
	assert.Equal(t, exitFailure, run([]string{filepath.Join(t.TempDir(), "missing.json")}))
}
