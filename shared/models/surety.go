package models

// Amounts travel as decimal strings of base units (1 unit = 10^18).

type OperationalRequest struct {
	Operational bool `json:"operational"`
}

type OperationalResponse struct {
	Operational bool `json:"operational"`
}

type AuthorizeCallerRequest struct {
	Address string `json:"address"`
}

// RegisterAirlineRequest admits or votes for an airline
type RegisterAirlineRequest struct {
	Airline string `json:"airline"`
}

// AdmissionResponse reports the result of a registration call
type AdmissionResponse struct {
	Airline     string `json:"airline"`
	Registered  bool   `json:"registered"`
	Votes       int    `json:"votes"`
	VotesNeeded int    `json:"votesNeeded,omitempty"`
}

// Airline is a federation member
type Airline struct {
	Address    string   `json:"address"`
	Registered bool     `json:"registered"`
	Funded     bool     `json:"funded"`
	Stake      string   `json:"stake"`
	Votes      []string `json:"votes,omitempty"`
}

// ValueRequest carries funds attached to a call
type ValueRequest struct {
	Value string `json:"value"`
}

// PurchaseResponse is the receipt of an insurance purchase
type PurchaseResponse struct {
	Premium  string `json:"premium"`
	Accepted string `json:"accepted"`
	Refunded string `json:"refunded"`
}

type PolicyResponse struct {
	Passenger string    `json:"passenger"`
	Flight    FlightKey `json:"flight"`
	Premium   string    `json:"premium"`
	Paid      bool      `json:"paid"`
}

type CreditResponse struct {
	Passenger string `json:"passenger"`
	Credit    string `json:"credit"`
}

// WithdrawalRequest names the flight a withdrawal is recorded against
type WithdrawalRequest struct {
	Flight FlightKey `json:"flight"`
}

type WithdrawalResponse struct {
	Passenger string `json:"passenger"`
	Amount    string `json:"amount"`
}

type OracleIndexesResponse struct {
	Oracle  string `json:"oracle"`
	Indexes []int  `json:"indexes"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

// Transfer is a pending settlement instruction in the payout outbox
type Transfer struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason"`
	Flight    FlightKey `json:"flight"`
	CreatedAt int64     `json:"createdAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
