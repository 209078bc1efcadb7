package ledger

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

type EventType string

const (
	EventAirlineRegistered  EventType = "airline_registered"
	EventAirlineVoted       EventType = "airline_voted"
	EventAirlineFunded      EventType = "airline_funded"
	EventFlightRegistered   EventType = "flight_registered"
	EventInsurancePurchased EventType = "insurance_purchased"
	EventOracleRegistered   EventType = "oracle_registered"
	EventOracleRequest      EventType = "oracle_request"
	EventOracleReport       EventType = "oracle_report"
	EventFlightStatusInfo   EventType = "flight_status_info"
	EventPassengerCredited  EventType = "passenger_credited"
	EventPassengerPaid      EventType = "passenger_paid"
	EventOperatingStatus    EventType = "operating_status"
)

// Event describes a committed state transition. Fields that do not apply to
// the event type are left zero.
type Event struct {
	Type      EventType
	Seq       uint64
	Timestamp time.Time
	Flight    FlightKey
	Address   Address
	Index     uint8
	Status    StatusCode
	Amount    *uint256.Int
}

// HasFlight reports whether the event is scoped to a flight.
func (e Event) HasFlight() bool {
	return !e.Flight.Airline.IsZero()
}

// EventSink receives events after the transaction that produced them commits.
type EventSink interface {
	Publish(ctx context.Context, events []Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, events []Event)

func (f EventSinkFunc) Publish(ctx context.Context, events []Event) {
	f(ctx, events)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, []Event) {}
