/**
 * Copyright 2025 Marcelo Parisi (github.com/feitnomore)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

var (
	once     sync.Once
	registry *Registry
)

/* Registry holds the reconciliation metrics. */
type Registry struct {
	PassesTotal       prometheus.Counter
	PassFailures      prometheus.Counter
	PassDuration      prometheus.Histogram
	GroupFailures     prometheus.Counter
	ServiceChains     prometheus.Gauge
	ChainsCollected   prometheus.Counter
	CollectionSkips   prometheus.Counter
	LastPassTimestamp prometheus.Gauge
}

/* Get returns the global metrics registry, creating it if necessary. */
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svcfw_passes_total",
		Help: "Total reconciliation passes started",
	})

	r.PassFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svcfw_pass_failures_total",
		Help: "Total reconciliation passes aborted by an error",
	})

	r.PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "svcfw_pass_duration_seconds",
		Help:    "Duration of a reconciliation pass",
		Buckets: prometheus.DefBuckets,
	})

	r.GroupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svcfw_group_failures_total",
		Help: "Service groups skipped over a bad policy document",
	})

	r.ServiceChains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svcfw_service_chains",
		Help: "Service chains managed after the last pass",
	})

	r.ChainsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svcfw_chains_collected_total",
		Help: "Stale service chains removed by garbage collection",
	})

	r.CollectionSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svcfw_collection_skips_total",
		Help: "Stale service chains whose removal failed and was skipped",
	})

	r.LastPassTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svcfw_last_pass_timestamp_seconds",
		Help: "Unix timestamp of the last completed pass",
	})

	return r
}

/* ObservePass records the outcome of one reconciliation pass. */
func (r *Registry) ObservePass(start time.Time, serviceChains int, groupFailures int, collected int, skipped int, err error) {
	r.PassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.PassFailures.Inc()
		return
	}
	r.ServiceChains.Set(float64(serviceChains))
	r.GroupFailures.Add(float64(groupFailures))
	r.ChainsCollected.Add(float64(collected))
	r.CollectionSkips.Add(float64(skipped))
	r.LastPassTimestamp.SetToCurrentTime()
}

/* Serve exposes /metrics on addr. Blocks until the listener fails. */
func Serve(addr string) error {
	klog.V(2).Infof("Starting metrics listener on %s \n", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
