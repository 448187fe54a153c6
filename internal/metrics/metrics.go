package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_decisions_total",
			Help: "Eligibility decisions by matched tier and outcome",
		},
		[]string{"tier", "outcome"}, // prime|standard|... , approved|rejected
	)

	LoansCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_loans_created_total",
			Help: "Loans committed after an approved decision",
		},
	)

	IngestRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_ingest_rows_total",
			Help: "Spreadsheet rows processed by the bulk import",
		},
		[]string{"kind", "result"}, // customers|loans , imported|skipped|failed
	)

	DecisionsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_decisions_recorded_total",
			Help: "Decision events copied from Kafka into ClickHouse",
		},
		[]string{"result"}, // stored|poison|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DecisionsTotal,
		LoansCreatedTotal,
		IngestRowsTotal,
		DecisionsRecordedTotal,
	)
}

func Outcome(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}
