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
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/google/uuid"
	"go.elastic.co/apm/module/apmzap/v2"
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Indexer loads regulation documents into a single Elasticsearch index.
//
// Indexer submits one bulk request at a time and is not safe for
// concurrent use.
type Indexer struct {
	config       Config
	client       elastictransport.Interface
	bulk         *BulkIndexer
	preprocessor *Preprocessor
	logger       *zap.Logger
	metrics      metrics
	runID        string

	// tracer is an OTel tracer, and should not be confused with
	// `i.config.Tracer` which is an Elastic APM Tracer.
	tracer trace.Tracer
}

// New returns a new Indexer that loads documents through client.
// It is only tested with v8 go-elasticsearch client. Use other clients at your own risk.
func New(client elastictransport.Interface, cfg Config) (*Indexer, error) {
	if client == nil {
		return nil, errMissingClient
	}
	cfg = DefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bulk, err := NewBulkIndexer(BulkIndexerConfig{
		Client:           client,
		CompressionLevel: cfg.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}
	ms, err := newMetrics(cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := cfg.Logger.With(zap.String("run_id", runID), zap.String("index", cfg.Index))
	i := &Indexer{
		config:  cfg,
		client:  client,
		bulk:    bulk,
		logger:  logger,
		metrics: ms,
		runID:   runID,
	}
	i.preprocessor = &Preprocessor{
		Logger: logger,
		OnDrop: func(field string) {
			i.metrics.datesDropped.Add(context.Background(), 1,
				metric.WithAttributeSet(i.config.MetricAttributes),
				metric.WithAttributes(attribute.String("field", field)),
			)
		},
	}
	if cfg.TracerProvider != nil {
		i.tracer = cfg.TracerProvider.Tracer("github.com/lexin/regindexer")
	}
	return i, nil
}

// RunID returns the identifier attached to every log line of this Indexer.
func (i *Indexer) RunID() string {
	return i.runID
}

// Run loads docs into the index: it waits for Elasticsearch to answer,
// replaces the index, submits every document and finally runs the
// verification search if a term is configured.
//
// Run returns an error only if Elasticsearch is unreachable, the index
// cannot be replaced, or ctx is done. Document and bulk request failures are
// reported in the returned statistics.
func (i *Indexer) Run(ctx context.Context, docs []Document) (RunStatistics, error) {
	if _, err := i.Probe(ctx); err != nil {
		return newRunStatistics(), err
	}
	if err := i.EnsureIndex(ctx); err != nil {
		return newRunStatistics(), err
	}
	stats, err := i.Submit(ctx, docs)
	i.logSummary(stats)
	if err != nil {
		return stats, err
	}
	if i.config.VerifyTerm == "" {
		return stats, nil
	}
	result, err := i.Verify(ctx, i.config.VerifyTerm, i.config.VerifySize)
	if err != nil {
		i.logger.Warn("verification search failed", zap.String("term", i.config.VerifyTerm), zap.Error(err))
		return stats, nil
	}
	i.logger.Info("verification search completed",
		zap.String("term", result.Term),
		zap.Int64("total", result.Total),
	)
	for _, hit := range result.Hits {
		i.logger.Info("verification hit",
			zap.String("title", hit.Title),
			zap.Float64("score", hit.Score),
			zap.String("document_id", hit.ID),
		)
	}
	return stats, nil
}

// Submit preprocesses docs and sends them to Elasticsearch in bulk requests
// of Config.BatchSize documents, in order, one request at a time.
//
// Failed documents and failed requests are recorded and the next batch is
// submitted; requests are never retried. Submit only stops early when ctx is
// done, returning the statistics gathered so far and ctx's error.
func (i *Indexer) Submit(ctx context.Context, docs []Document) (RunStatistics, error) {
	start := time.Now()
	stats := newRunStatistics()
	batches := Partition(docs, i.config.BatchSize)
	var attachments int
	for _, doc := range docs {
		attachments += len(doc.Attachments())
	}
	i.logger.Info("indexing documents",
		zap.Int("documents", len(docs)),
		zap.Int("attachments", attachments),
		zap.Int("batch_size", i.config.BatchSize),
		zap.Int("batches", len(batches)),
	)

	var err error
	for n, batch := range batches {
		if err = ctx.Err(); err != nil {
			i.logger.Warn("indexing interrupted", zap.Int("next_batch", n+1), zap.Error(err))
			break
		}
		i.submitBatch(ctx, n+1, len(batches), batch, &stats)
	}
	stats.Elapsed = time.Since(start)
	i.metrics.runDuration.Record(context.Background(), stats.Elapsed.Seconds(),
		metric.WithAttributeSet(i.config.MetricAttributes),
	)
	return stats.clone(), err
}

func (i *Indexer) submitBatch(ctx context.Context, n, total int, batch []Document, stats *RunStatistics) {
	logger := i.logger.With(zap.Int("batch", n), zap.Int("batches", total))
	attrs := metric.WithAttributeSet(i.config.MetricAttributes)

	var span trace.Span
	if i.tracer != nil {
		ctx, span = i.tracer.Start(ctx, "regindexer.flush", trace.WithAttributes(
			attribute.Int("documents", len(batch)),
			attribute.Int("batch", n),
			attribute.String("run_id", i.runID),
		))
		defer span.End()

		// Add trace IDs to logger, to associate any per-item errors
		// below with the trace.
		logger = logger.With(
			zap.String("traceId", span.SpanContext().TraceID().String()),
			zap.String("spanId", span.SpanContext().SpanID().String()),
		)
	}
	var tx *apm.Transaction
	if i.config.Tracer != nil {
		tx = i.config.Tracer.StartTransaction("regindexer.flush", "output")
		defer tx.End()
		tx.Context.SetLabel("documents", len(batch))
		ctx = apm.ContextWithTransaction(ctx, tx)

		// Add trace IDs to logger, to associate any per-item errors
		// below with the trace.
		logger = logger.With(apmzap.TraceContext(ctx)...)
	}

	// ids and positions map request order back to the batch.
	ids := make([]string, 0, len(batch))
	positions := make([]int, 0, len(batch))
	var unsent []BulkIndexerResponseItem
	for pos, doc := range batch {
		processed := i.preprocessor.Preprocess(doc)
		id := processed.ID()
		err := i.addDocument(id, processed)
		if err != nil {
			item := BulkIndexerResponseItem{
				Index:      i.config.Index,
				DocumentID: id,
				Status:     http.StatusBadRequest,
				Position:   pos,
			}
			item.Error.Type = errorTypeEncoding
			item.Error.Reason = err.Error()
			unsent = append(unsent, item)
			continue
		}
		ids = append(ids, id)
		positions = append(positions, pos)
	}
	if len(unsent) > 0 {
		i.metrics.docsProcessed.Add(context.Background(), int64(len(unsent)), attrs,
			metric.WithAttributes(attribute.String("status", "FailedEncoding")),
		)
	}

	flushCtx, cancel := context.WithTimeout(ctx, i.config.BulkTimeout)
	defer cancel()
	var resp BulkIndexerResponseStat
	var err error
	took := timeFunc(func() {
		resp, err = i.bulk.Flush(flushCtx)
	})
	if len(ids) > 0 {
		i.metrics.flushDuration.Record(context.Background(), took.Seconds(), attrs)
	}
	if flushed := i.bulk.BytesFlushed(); flushed > 0 && len(ids) > 0 {
		i.metrics.bytesTotal.Add(context.Background(), int64(flushed), attrs)
	}

	if err != nil {
		stats.recordFailedBatch(len(ids), AggregateFailures(unsent))
		fields := []zap.Field{zap.Int("documents", len(ids)), zap.Error(err)}
		statusAttrs := []attribute.KeyValue{attribute.String("outcome", "failure")}
		var errFailed ErrorFlushFailed
		if errors.As(err, &errFailed) {
			fields = append(fields, zap.Int("status", errFailed.StatusCode))
			statusAttrs = append(statusAttrs, semconv.HTTPResponseStatusCode(errFailed.StatusCode))
		}
		logger.Error("bulk indexing request failed", fields...)
		i.metrics.bulkRequests.Add(context.Background(), 1, attrs, metric.WithAttributes(statusAttrs...))
		i.metrics.docsProcessed.Add(context.Background(), int64(len(ids)), attrs,
			metric.WithAttributes(attribute.String("status", "FailedRequest")),
		)
		if span != nil && span.IsRecording() {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk indexing request failed")
		}
		if tx != nil {
			tx.Outcome = "failure"
			apm.CaptureError(ctx, err).Send()
		}
		if len(unsent) > 0 {
			i.logFailures(logger, AggregateFailures(unsent))
		}
		return
	}

	failed := make([]BulkIndexerResponseItem, 0, len(unsent)+len(resp.FailedDocs))
	failed = append(failed, unsent...)
	var clientFailed, serverFailed int64
	for _, item := range resp.FailedDocs {
		if item.DocumentID == "" {
			item.DocumentID = ids[item.Position]
		}
		item.Position = positions[item.Position]
		if item.Status >= http.StatusInternalServerError {
			serverFailed++
		} else {
			clientFailed++
		}
		failed = append(failed, item)
		if span != nil && span.IsRecording() {
			span.RecordError(errors.New(item.Error.Reason))
		}
	}
	slices.SortStableFunc(failed, func(a, b BulkIndexerResponseItem) int {
		return a.Position - b.Position
	})
	summary := AggregateFailures(failed)
	stats.recordBatch(resp.Indexed, summary)

	if len(ids) > 0 {
		i.metrics.bulkRequests.Add(context.Background(), 1, attrs,
			metric.WithAttributes(attribute.String("outcome", "success")),
		)
	}
	for status, count := range map[string]int64{
		"Success":      resp.Indexed,
		"FailedClient": clientFailed,
		"FailedServer": serverFailed,
	} {
		if count > 0 {
			i.metrics.docsProcessed.Add(context.Background(), count, attrs,
				metric.WithAttributes(attribute.String("status", status)),
			)
		}
	}

	if summary.Count == 0 {
		logger.Info("indexed batch",
			zap.Int("documents", len(batch)),
			zap.Duration("took", time.Duration(resp.Took)*time.Millisecond),
		)
	} else {
		logger.Info("indexed batch with errors",
			zap.Int64("indexed", resp.Indexed),
			zap.Int("documents", len(batch)),
			zap.Int("failed", summary.Count),
			zap.Duration("took", time.Duration(resp.Took)*time.Millisecond),
		)
		i.logFailures(logger, summary)
		if span != nil && span.IsRecording() {
			span.SetStatus(codes.Error, "documents failed to index")
		}
		if tx != nil {
			tx.Outcome = "failure"
		}
		return
	}
	if span != nil && span.IsRecording() {
		span.SetStatus(codes.Ok, "")
	}
	if tx != nil {
		tx.Outcome = "success"
	}
}

// addDocument encodes doc and appends it to the pending bulk request.
func (i *Indexer) addDocument(id string, doc Document) error {
	body, err := jsonAPI.Marshal(doc)
	if err != nil {
		return err
	}
	return i.bulk.Add(BulkIndexerItem{
		Index:      i.config.Index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	})
}

func (i *Indexer) logFailures(logger *zap.Logger, summary BatchErrorSummary) {
	for n, item := range summary.Preview {
		fields := []zap.Field{
			zap.Int("error", n+1),
			zap.String("document_id", item.DocumentID),
			zap.Int("status", item.Status),
			zap.String("error_type", errorType(item)),
			zap.String("reason", item.Error.Reason),
		}
		if item.Error.CausedBy.Reason != "" {
			fields = append(fields, zap.String("caused_by", item.Error.CausedBy.Reason))
		}
		logger.Warn("failed to index document", fields...)
	}
	if marker := summary.MoreMarker(); marker != "" {
		logger.Warn(marker, zap.Int("remaining", summary.Remaining))
	}
	logger.Info("batch error summary", zap.Any("error_types", summary.Types))
}

func (i *Indexer) logSummary(stats RunStatistics) {
	i.logger.Info("indexing complete",
		zap.Int64("total", stats.Total),
		zap.Int64("indexed", stats.Indexed),
		zap.Int64("failed", stats.Failed),
		zap.Int64("batch_failed", stats.BatchFailed),
		zap.Int("batches", stats.Batches),
		zap.Int("failed_batches", stats.FailedBatches),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Any("error_types", stats.ErrorTypes),
	)
}

// requestContext bounds index management and search requests.
func (i *Indexer) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, i.config.RequestTimeout)
}

// Partition splits items into consecutive batches of size items; the last
// batch may be shorter. Batches share the backing array of items.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

func timeFunc(f func()) time.Duration {
	t0 := time.Now()
	if f != nil {
		f()
	}
	return time.Since(t0)
}
