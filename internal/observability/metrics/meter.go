// Copyright 2026 The Giftswap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration.
type Config struct {
	// Enabled routes instrument updates to the global OpenTelemetry meter
	// provider. The Prometheus registry is always populated.
	Enabled bool
}

// Meter pairs an OpenTelemetry meter with the Prometheus registry served on /metrics.
type Meter struct {
	otelMeter metric.Meter
	registry  *prometheus.Registry
}

// New creates a meter with Go runtime and process collectors registered.
func New(_ context.Context, cfg Config, serviceName string) (*Meter, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	name := serviceName
	if !cfg.Enabled || name == "" {
		name = "noop"
	}
	return &Meter{otelMeter: otel.Meter(name), registry: registry}, nil
}

func (m *Meter) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Meter) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CreateCounter creates an OpenTelemetry int64 counter.
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.otelMeter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}
