package models

// FlightKey identifies a flight by airline, code and departure time in unix
// milliseconds. All three must match the registration exactly.
type FlightKey struct {
	Airline   string `json:"airline"`
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"`
}

// RegisterFlightRequest registers a flight for the calling airline
type RegisterFlightRequest struct {
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"`
}

// Flight is a registered flight
type Flight struct {
	Key        FlightKey `json:"key"`
	Status     uint8     `json:"status"`
	StatusName string    `json:"statusName"`
	Insurees   []string  `json:"insurees"`
}

// StatusRequest is the oracle request opened for a flight
type StatusRequest struct {
	Flight    FlightKey `json:"flight"`
	Index     uint8     `json:"index"`
	Requester string    `json:"requester"`
	Open      bool      `json:"open"`
	Final     uint8     `json:"final,omitempty"`
	// Responses maps a status code to the oracles that reported it.
	Responses map[uint8][]string `json:"responses"`
}

// ProcessStatusRequest finalizes a flight directly
type ProcessStatusRequest struct {
	Status uint8 `json:"status"`
}

// OracleResponseRequest is an oracle's report for an open request
type OracleResponseRequest struct {
	Index  uint8     `json:"index"`
	Flight FlightKey `json:"flight"`
	Status uint8     `json:"status"`
}

// OracleResponseResult tells the oracle what its report did
type OracleResponseResult struct {
	Counted  bool  `json:"counted"`
	Closed   bool  `json:"closed"`
	Agreeing int   `json:"agreeing"`
	Final    uint8 `json:"final,omitempty"`
}
