package service

import (
	"fmt"
	"sort"

	"github.com/cx-tal-miterani/flight-surety/internal/database"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
)

// ParseFlightKey validates a wire flight key.
func ParseFlightKey(k models.FlightKey) (ledger.FlightKey, error) {
	airline, err := ledger.ParseAddress(k.Airline)
	if err != nil {
		return ledger.FlightKey{}, err
	}
	if k.Code == "" {
		return ledger.FlightKey{}, fmt.Errorf("flight code is required")
	}
	return ledger.FlightKey{Airline: airline, Code: k.Code, Timestamp: k.Timestamp}, nil
}

func flightKeyDTO(k ledger.FlightKey) models.FlightKey {
	return models.FlightKey{Airline: k.Airline.String(), Code: k.Code, Timestamp: k.Timestamp}
}

func addressStrings(addrs []ledger.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

func airlineDTO(a *ledger.Airline) *models.Airline {
	return &models.Airline{
		Address:    a.Address.String(),
		Registered: a.Registered,
		Funded:     a.Funded,
		Stake:      a.Stake.Dec(),
		Votes:      addressStrings(a.VoteList()),
	}
}

func flightDTO(f *ledger.Flight) *models.Flight {
	return &models.Flight{
		Key:        flightKeyDTO(f.Key),
		Status:     uint8(f.Status),
		StatusName: f.Status.String(),
		Insurees:   addressStrings(f.Insurees),
	}
}

func statusRequestDTO(r *ledger.StatusRequest) *models.StatusRequest {
	out := &models.StatusRequest{
		Flight:    flightKeyDTO(r.Flight),
		Index:     r.Index,
		Requester: r.Requester.String(),
		Open:      r.Open,
		Final:     uint8(r.Final),
		Responses: make(map[uint8][]string, len(r.Responses)),
	}
	for code, oracles := range r.Responses {
		out.Responses[uint8(code)] = addressStrings(oracles)
	}
	return out
}

func oracleIndexesDTO(oracle ledger.Address, indexes [ledger.OracleIndexCount]uint8) *models.OracleIndexesResponse {
	out := &models.OracleIndexesResponse{Oracle: oracle.String(), Indexes: make([]int, 0, len(indexes))}
	for _, idx := range indexes {
		out.Indexes = append(out.Indexes, int(idx))
	}
	sort.Ints(out.Indexes)
	return out
}

func transferDTO(t database.PayoutTransfer) models.Transfer {
	return models.Transfer{
		ID:        t.ID,
		Recipient: t.Recipient,
		Amount:    t.Amount,
		Reason:    t.Reason,
		Flight: models.FlightKey{
			Airline:   t.FlightAirline,
			Code:      t.FlightCode,
			Timestamp: t.FlightTimestamp,
		},
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
}
