package nestedset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_operations_total",
	Help: "The total number of completed structural operations",
}, []string{"op"})

var opsNoop = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_noop_operations_total",
	Help: "The total number of operations reported as no-ops (already first/last sibling, move to current parent)",
}, []string{"op"})

var txRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_tx_rollbacks_total",
	Help: "The total number of rolled-back structural transactions",
}, []string{"op"})

var ambiguousLookups = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nestedset_ambiguous_lookups_total",
	Help: "The total number of name lookups matching more than one row",
})
