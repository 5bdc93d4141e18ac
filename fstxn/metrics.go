package fstxn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fstxn_starts_total",
		Help: "Journal handles started.",
	})
	extendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fstxn_extends_total",
		Help: "Handle extend attempts by result (ok, full).",
	}, []string{"result"})
	restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fstxn_restarts_total",
		Help: "Transactions committed and reopened by restart.",
	})
	stopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fstxn_stops_total",
		Help: "Journal handles stopped.",
	})
	abortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fstxn_aborts_total",
		Help: "Handles that observed an aborted transaction at stop.",
	})
	creditsReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fstxn_credits_reserved_total",
		Help: "Raw buffer credits reserved from the journal.",
	})
)
