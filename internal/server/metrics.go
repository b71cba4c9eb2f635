package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokkaid_synced_records_total",
		Help: "Records ingested per source.",
	}, []string{"source"})

	linksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokkaid_links_created_total",
		Help: "Links created per confidence tier.",
	}, []string{"tier"})

	linksSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kokkaid_links_superseded_total",
		Help: "Links replaced by a higher-confidence link.",
	})

	unmatchedReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kokkaid_unmatched_total",
		Help: "Unmatched records reported per reason.",
	}, []string{"reason"})

	linkConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kokkaid_link_conflicts_total",
		Help: "Link writes abandoned after a persistent store conflict.",
	})
)
