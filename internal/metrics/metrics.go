// Package metrics holds Prometheus instruments used across the rewrite
// pipeline.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rewrite actions used as the "action" label of RewritesPersistedTotal.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionRedirect = "redirect"
)

var (
	RowsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlrewrite_rows_processed_total",
			Help: "Rows handled by the url pipeline, by outcome (ok, skipped, failed).",
		}, []string{"outcome"})

	RewritesPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlrewrite_rewrites_persisted_total",
			Help: "Rewrite rows written, by action (create, update, redirect).",
		}, []string{"action"})

	RewritesDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlrewrite_rewrites_discarded_total",
			Help: "Generated rewrites dropped because a manual rewrite owns the path.",
		})

	URLKeyCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlrewrite_url_key_collisions_total",
			Help: "Taken values seen while probing for a unique url key or request path.",
		})

	WarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlrewrite_warnings_total",
			Help: "Recoverable row problems, by kind.",
		}, []string{"kind"})

	RewriteLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlrewrite_lookups_total",
			Help: "Front-door request path lookups, by result (rewrite, redirect, miss).",
		}, []string{"result"})

	ActiveRewriteTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "urlrewrite_active_tables",
			Help: "Per-store rewrite tables currently held in memory.",
		})
)

func init() {
	prometheus.MustRegister(
		RowsProcessedTotal,
		RewritesPersistedTotal,
		RewritesDiscardedTotal,
		URLKeyCollisionsTotal,
		WarningsTotal,
		RewriteLookupsTotal,
		ActiveRewriteTables,
	)
}
