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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PermissionMetrics records authorization decisions and grant churn.
// It satisfies authz.Recorder.
type PermissionMetrics struct {
	Decisions *prometheus.CounterVec // giftswap_authz_decisions_total{resource,result}
	Grants    *prometheus.CounterVec // giftswap_permission_grants_total{outcome}
	Revokes   prometheus.Counter     // giftswap_permission_revokes_total

	grantCounter  metric.Int64Counter
	revokeCounter metric.Int64Counter
}

// NewPermissionMetrics registers the permission metrics on m's registry and
// creates the matching OpenTelemetry counters.
func NewPermissionMetrics(m *Meter) (*PermissionMetrics, error) {
	factory := promauto.With(m.Registry())
	pm := &PermissionMetrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "giftswap_authz_decisions_total",
			Help: "Authorization decisions by resource and result",
		}, []string{"resource", "result"}),

		Grants: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "giftswap_permission_grants_total",
			Help: "Grant calls by outcome (created or existing)",
		}, []string{"outcome"}),

		Revokes: factory.NewCounter(prometheus.CounterOpts{
			Name: "giftswap_permission_revokes_total",
			Help: "Revoke calls",
		}),
	}

	var err error
	if pm.grantCounter, err = m.CreateCounter("giftswap.permission.grants", "Permission grants written"); err != nil {
		return nil, err
	}
	if pm.revokeCounter, err = m.CreateCounter("giftswap.permission.revokes", "Permission revocations"); err != nil {
		return nil, err
	}
	return pm, nil
}

func (pm *PermissionMetrics) RecordDecision(_ context.Context, resource string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	pm.Decisions.WithLabelValues(resource, result).Inc()
}

func (pm *PermissionMetrics) RecordGrant(ctx context.Context, created bool) {
	outcome := "existing"
	if created {
		outcome = "created"
		pm.grantCounter.Add(ctx, 1)
	}
	pm.Grants.WithLabelValues(outcome).Inc()
}

func (pm *PermissionMetrics) RecordRevoke(ctx context.Context) {
	pm.Revokes.Inc()
	pm.revokeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "store")))
}
