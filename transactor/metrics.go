/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transactor

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds process-wide transaction counters. The zero value is not
// usable; get an instance from Executor.Metrics().
//
// Metrics implements prometheus.Collector so the counters can be exported
// by registering it with a prometheus registry; nothing in this package
// requires that.
type Metrics struct {
	total      atomic.Int64
	committed  atomic.Int64
	rolledBack atomic.Int64
	deadlocks  atomic.Int64
	retries    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Total      int64 `json:"totalTransactions"`
	Committed  int64 `json:"committedTransactions"`
	RolledBack int64 `json:"rolledBackTransactions"`
	Deadlocks  int64 `json:"deadlockCount"`
	Retries    int64 `json:"retryCount"`
}

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Total:      m.total.Load(),
		Committed:  m.committed.Load(),
		RolledBack: m.rolledBack.Load(),
		Deadlocks:  m.deadlocks.Load(),
		Retries:    m.retries.Load(),
	}
}

var (
	descTotal = prometheus.NewDesc(
		"finance_transactor_transactions_total",
		"Total number of transaction attempts started.",
		nil, nil)
	descCommitted = prometheus.NewDesc(
		"finance_transactor_transactions_committed_total",
		"Number of transaction attempts that committed.",
		nil, nil)
	descRolledBack = prometheus.NewDesc(
		"finance_transactor_transactions_rolled_back_total",
		"Number of transaction attempts that rolled back.",
		nil, nil)
	descDeadlocks = prometheus.NewDesc(
		"finance_transactor_deadlocks_total",
		"Number of deadlock or serialization failures observed.",
		nil, nil)
	descRetries = prometheus.NewDesc(
		"finance_transactor_retries_total",
		"Number of transaction retries performed.",
		nil, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTotal
	ch <- descCommitted
	ch <- descRolledBack
	ch <- descDeadlocks
	ch <- descRetries
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descTotal, prometheus.CounterValue, float64(m.total.Load()))
	ch <- prometheus.MustNewConstMetric(descCommitted, prometheus.CounterValue, float64(m.committed.Load()))
	ch <- prometheus.MustNewConstMetric(descRolledBack, prometheus.CounterValue, float64(m.rolledBack.Load()))
	ch <- prometheus.MustNewConstMetric(descDeadlocks, prometheus.CounterValue, float64(m.deadlocks.Load()))
	ch <- prometheus.MustNewConstMetric(descRetries, prometheus.CounterValue, float64(m.retries.Load()))
}
