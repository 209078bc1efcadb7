package models

import "time"

const (
	OracleRequestWorkflowName = "OracleRequestWorkflow"

	ActivityEligibleOracles      = "EligibleOracles"
	ActivityObserveFlightStatus  = "ObserveFlightStatus"
	ActivitySubmitOracleResponse = "SubmitOracleResponse"
)

// OracleRequestInput starts the oracle workflow for one status request
type OracleRequestInput struct {
	// Seq is the ledger sequence number of the fetch that issued the request.
	Seq         uint64    `json:"seq"`
	Index       uint8     `json:"index"`
	Flight      FlightKey `json:"flight"`
	RequestedAt time.Time `json:"requestedAt"`
}

// OracleRequestResult summarizes what the fleet did for a request
type OracleRequestResult struct {
	Eligible  int   `json:"eligible"`
	Submitted int   `json:"submitted"`
	Rejected  int   `json:"rejected"`
	Closed    bool  `json:"closed"`
	Final     uint8 `json:"final,omitempty"`
}

type ObserveInput struct {
	Oracle string    `json:"oracle"`
	Flight FlightKey `json:"flight"`
}

type SubmitInput struct {
	Oracle string    `json:"oracle"`
	Index  uint8     `json:"index"`
	Flight FlightKey `json:"flight"`
	Status uint8     `json:"status"`
}

type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Closed   bool   `json:"closed"`
	Final    uint8  `json:"final,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
