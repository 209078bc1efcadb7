package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	operations         *prometheus.CounterVec
	oracleResponses    *prometheus.CounterVec
	transfers          *prometheus.CounterVec
	transferFailures   prometheus.Counter
	requestsClosed     prometheus.Counter
	creditsIssued      prometheus.Counter
	airlinesRegistered prometheus.Gauge
	airlinesFunded     prometheus.Gauge
	flights            prometheus.Gauge
	policies           prometheus.Gauge
	oracles            prometheus.Gauge
	balance            prometheus.Gauge
	operational        prometheus.Gauge
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.operations = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_surety_ledger_operations_total",
		Help: "committed ledger operations by kind",
	}, []string{"op"})
	m.oracleResponses = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_surety_oracle_responses_total",
		Help: "accepted oracle responses by outcome (counted, quorum, late)",
	}, []string{"outcome"})
	m.transfers = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_surety_transfers_total",
		Help: "funds transfers issued by reason",
	}, []string{"reason"})
	m.transferFailures = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "flight_surety_transfer_failures_total",
		Help: "funds transfers that failed and were compensated",
	})
	m.requestsClosed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "flight_surety_status_requests_closed_total",
		Help: "status requests closed by oracle quorum",
	})
	m.creditsIssued = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "flight_surety_credits_issued_total",
		Help: "passenger credits issued on late-airline settlements",
	})
	m.airlinesRegistered = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_airlines_registered",
		Help: "registered airlines",
	})
	m.airlinesFunded = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_airlines_funded",
		Help: "funded airlines",
	})
	m.flights = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_flights",
		Help: "registered flights",
	})
	m.policies = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_policies",
		Help: "insurance policies held",
	})
	m.oracles = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_oracles",
		Help: "registered oracles",
	})
	m.balance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_balance_units",
		Help: "funds escrowed by the ledger, in native units",
	})
	m.operational = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "flight_surety_operational",
		Help: "whether the ledger accepts mutations (0 or 1)",
	})
}
