package activities

import (
	"context"
	"crypto/sha256"
	"errors"
	"strconv"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"go.temporal.io/sdk/activity"
)

// Accuracy is the share of observations that report a flight's true status,
// out of 256.
const Accuracy = 204

// Activities are the oracle fleet's Temporal activities.
type Activities struct {
	api   *APIClient
	fleet *Fleet
}

func NewActivities(api *APIClient, fleet *Fleet) *Activities {
	return &Activities{api: api, fleet: fleet}
}

// EligibleOracles activity - lists the fleet's oracles that hold index
func (a *Activities) EligibleOracles(ctx context.Context, index uint8) ([]string, error) {
	eligible := a.fleet.Eligible(index)
	activity.GetLogger(ctx).Info("Eligible oracles", "index", index, "count", len(eligible))
	return eligible, nil
}

// ObserveFlightStatus activity - the oracle's view of the flight's outcome.
// Observations are simulated: most oracles see the same status for a
// flight, a few report something else.
func (a *Activities) ObserveFlightStatus(ctx context.Context, input models.ObserveInput) (uint8, error) {
	status := observe(a.fleet.Seed(), input.Oracle, input.Flight)
	activity.GetLogger(ctx).Info("Observed flight status",
		"oracle", input.Oracle,
		"flight", input.Flight.Code,
		"status", status,
	)
	return status, nil
}

// SubmitOracleResponse activity - posts the oracle's report to the ledger.
// Reports the ledger refuses (closed, duplicate, not eligible) are not
// retried; transport and server errors are.
func (a *Activities) SubmitOracleResponse(ctx context.Context, input models.SubmitInput) (*models.SubmitResult, error) {
	logger := activity.GetLogger(ctx)

	res, err := a.api.SubmitResponse(ctx, input.Oracle, models.OracleResponseRequest{
		Index:  input.Index,
		Flight: input.Flight,
		Status: input.Status,
	})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			logger.Warn("Oracle response rejected", "oracle", input.Oracle, "code", statusErr.Code, "reason", statusErr.Message)
			return &models.SubmitResult{Accepted: false, Reason: statusErr.Message}, nil
		}
		return nil, err
	}

	logger.Info("Oracle response accepted", "oracle", input.Oracle, "counted", res.Counted, "closed", res.Closed)
	return &models.SubmitResult{
		Accepted: true,
		Closed:   res.Closed,
		Final:    res.Final,
	}, nil
}

func observe(seed int64, oracle string, flight models.FlightKey) uint8 {
	flightID := strconv.FormatInt(seed, 10) + "/" + flight.Airline + "/" + flight.Code + "/" + strconv.FormatInt(flight.Timestamp, 10)
	truth := sha256.Sum256([]byte(flightID))
	view := sha256.Sum256([]byte(flightID + "/" + oracle))

	statuses := ledger.FinalStatuses
	if view[0] < Accuracy {
		return uint8(statuses[int(truth[0])%len(statuses)])
	}
	return uint8(statuses[int(view[1])%len(statuses)])
}
