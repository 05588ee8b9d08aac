package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mineTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxvm_mine_total",
		Help: "Mining attempts, labeled by source and result",
	}, []string{"source", "result"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxvm_requests_total",
		Help: "Withdrawal and UC request lifecycle events",
	}, []string{"kind", "outcome"})

	dropRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxvm_drop_runs_total",
		Help: "Drop distribution runs, labeled by outcome",
	}, []string{"outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxvm_notifications_total",
		Help: "Batch notification deliveries, labeled by result",
	}, []string{"result"})
)
