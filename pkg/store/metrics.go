package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extcache_record_reads_total",
		Help: "Record reads by outcome (hit, miss, corrupt).",
	}, []string{"outcome"})

	recordWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extcache_record_writes_total",
		Help: "Record writes by outcome (ok, error, no_key).",
	}, []string{"outcome"})
)
