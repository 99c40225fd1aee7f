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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/lexin/regindexer/esapi"
)

// ServiceInfo is the answer of Elasticsearch's root endpoint.
type ServiceInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number      string `json:"number"`
		BuildFlavor string `json:"build_flavor"`
	} `json:"version"`
}

var errNoVersion = errors.New("response carries no version number")

// Probe waits until Elasticsearch answers its root endpoint, making at most
// Config.ProbeAttempts attempts Config.ProbeDelay apart. Each attempt is
// bounded by Config.ProbeTimeout.
//
// Probe returns an error wrapping ErrUnreachable once every attempt failed,
// or ctx's error if ctx is done first.
func (i *Indexer) Probe(ctx context.Context) (ServiceInfo, error) {
	attempts := i.config.ProbeAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		info, err := i.probeOnce(ctx)
		i.metrics.probeAttempts.Add(context.Background(), 1,
			metric.WithAttributeSet(i.config.MetricAttributes),
			metric.WithAttributes(attribute.Bool("success", err == nil)),
		)
		if err == nil {
			i.logger.Info("connected to elasticsearch",
				zap.Int("attempt", attempt),
				zap.String("cluster_name", info.ClusterName),
				zap.String("version", info.Version.Number),
			)
			return info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ServiceInfo{}, ctx.Err()
		}
		if attempt == attempts {
			break
		}
		i.logger.Warn("elasticsearch not reachable, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Duration("delay", i.config.ProbeDelay),
			zap.Error(err),
		)
		timer := time.NewTimer(i.config.ProbeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ServiceInfo{}, ctx.Err()
		case <-timer.C:
		}
	}
	i.logger.Error("elasticsearch unreachable", zap.Int("attempts", attempts), zap.Error(lastErr))
	return ServiceInfo{}, fmt.Errorf("%w after %d attempts: %w", ErrUnreachable, attempts, lastErr)
}

func (i *Indexer) probeOnce(ctx context.Context) (ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, i.config.ProbeTimeout)
	defer cancel()

	var info ServiceInfo
	res, err := esapi.InfoRequest{}.Do(ctx, i.client)
	if err != nil {
		return info, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return info, fmt.Errorf("unexpected response: %s", res)
	}
	if err := jsoniter.NewDecoder(res.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("error decoding info response: %w", err)
	}
	if info.Version.Number == "" {
		return info, errNoVersion
	}
	return info, nil
}
