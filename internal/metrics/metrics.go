// Package metrics exposes Prometheus counters for the automation core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RulesFired counts automation rule firings by trigger type.
	RulesFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanflow_rules_fired_total",
		Help: "Automation rules fired, by trigger type.",
	}, []string{"trigger"})

	// ActionsExecuted counts action executions by action type and outcome.
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanflow_actions_executed_total",
		Help: "Automation actions executed, by action type and outcome.",
	}, []string{"action", "outcome"})

	// JobsDispatched counts reminder job dispatch outcomes.
	JobsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loanflow_jobs_dispatched_total",
		Help: "Reminder job dispatch attempts, by outcome.",
	}, []string{"outcome"})

	// SLABreaches counts newly detected SLA breach episodes.
	SLABreaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loanflow_sla_breaches_total",
		Help: "SLA breach episodes detected.",
	})

	// EscalationsOpened counts escalations opened.
	EscalationsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loanflow_escalations_opened_total",
		Help: "Escalations opened.",
	})
)
