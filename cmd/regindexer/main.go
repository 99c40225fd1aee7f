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

// Command regindexer loads archives of Indonesian regulation documents into
// Elasticsearch, replacing the target index.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmelasticsearch/v2"
	"go.elastic.co/apm/module/apmzap/v2"
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lexin/regindexer"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

type flags struct {
	configPath       string
	host             string
	index            string
	batchSize        int
	compressionLevel int
	verifyTerm       string
	noVerify         bool
	logLevel         string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return exitInterrupt
	default:
		return exitFailure
	}
}

func newCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "regindexer [flags] ARCHIVE...",
		Short: "Load regulation documents into Elasticsearch",
		Long: `Load regulation documents into Elasticsearch.

Each ARCHIVE is a JSON array or newline delimited JSON file of documents,
optionally gzip compressed (.gz). The target index is deleted and recreated
with the regulation mapping before any document is sent.

Connection settings are read from the config file and the ES_HOST,
ES_SCHEME, ES_USERNAME and ES_PASSWORD environment variables.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			err = runIndexer(cmd.Context(), cfg, args)
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			}
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&f.host, "host", "", "Elasticsearch host (overrides config and ES_HOST)")
	fs.StringVar(&f.index, "index", "", "target index (overrides config)")
	fs.IntVar(&f.batchSize, "batch-size", 0, "documents per bulk request (overrides config)")
	fs.IntVar(&f.compressionLevel, "compression-level", 0, "gzip level of bulk requests, -1 to 9 (overrides config)")
	fs.StringVar(&f.verifyTerm, "verify-term", "", "term searched for after loading (overrides config)")
	fs.BoolVar(&f.noVerify, "no-verify", false, "skip the verification search")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (overrides config and REGINDEXER_LOG_LEVEL)")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (f *flags) apply(cmd *cobra.Command, cfg *config) {
	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Elasticsearch.Host = f.host
	}
	if changed("index") {
		cfg.Indexer.Index = f.index
	}
	if changed("batch-size") {
		cfg.Indexer.BatchSize = f.batchSize
	}
	if changed("compression-level") {
		cfg.Indexer.CompressionLevel = f.compressionLevel
	}
	if changed("verify-term") {
		cfg.Indexer.VerifyTerm = f.verifyTerm
	}
	if f.noVerify {
		cfg.Indexer.VerifyTerm = ""
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

func runIndexer(ctx context.Context, cfg *config, paths []string) error {
	var tracer *apm.Tracer
	if cfg.APM.Active {
		tracer = apm.DefaultTracer()
		defer tracer.Close()
		defer tracer.Flush(nil)
	}
	logger, err := newLogger(cfg.Logging, tracer)
	if err != nil {
		return err
	}
	defer logger.Sync()

	docs, err := regindexer.LoadDocuments(ctx, paths...)
	if err != nil {
		logger.Error("failed to read documents", zap.Strings("paths", paths), zap.Error(err))
		return err
	}
	logger.Info("read documents", zap.Int("documents", len(docs)), zap.Strings("paths", paths))

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{cfg.Elasticsearch.URL()},
		Username:     cfg.Elasticsearch.Username,
		Password:     cfg.Elasticsearch.Password,
		DisableRetry: true,
		Transport:    apmelasticsearch.WrapRoundTripper(http.DefaultTransport),
	})
	if err != nil {
		return fmt.Errorf("creating elasticsearch client: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	icfg := cfg.indexerConfig()
	icfg.Logger = logger
	icfg.Tracer = tracer
	icfg.TracerProvider = otel.GetTracerProvider()
	icfg.MeterProvider = mp
	icfg.MetricAttributes = attribute.NewSet(attribute.String("index", cfg.Indexer.Index))
	indexer, err := regindexer.New(client, icfg)
	if err != nil {
		return err
	}
	_, err = indexer.Run(ctx, docs)
	logMetrics(logger, reader)
	return err
}

func newLogger(cfg loggingConfig, tracer *apm.Tracer) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	if tracer != nil {
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, &apmzap.Core{Tracer: tracer})
		}))
	}
	return logger, nil
}
