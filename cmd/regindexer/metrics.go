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
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// logMetrics logs the totals of the metrics recorded during the run as a
// single line.
func logMetrics(logger *zap.Logger, reader sdkmetric.Reader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		logger.Warn("failed to collect metrics", zap.Error(err))
		return
	}
	var fields []zap.Field
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				fields = append(fields, zap.Int64(m.Name, total))
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				fields = append(fields,
					zap.Uint64(m.Name+".count", count),
					zap.Float64(m.Name+".sum", sum),
				)
			}
		}
	}
	if len(fields) > 0 {
		logger.Info("run metrics", fields...)
	}
}
