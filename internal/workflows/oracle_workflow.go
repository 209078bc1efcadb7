package workflows

import (
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// ObserveTimeout bounds a single oracle observation.
	ObserveTimeout = 10 * time.Second
	// SubmitTimeout bounds one response submission to the API server.
	SubmitTimeout = 15 * time.Second
	// MaxSubmitAttempts is how often a failing submission is retried.
	MaxSubmitAttempts = 5
)

// WorkflowID is the id used for a status request's workflow. Every fetch
// gets its own run; a redelivered event maps to the run it already started.
func WorkflowID(input models.OracleRequestInput) string {
	return fmt.Sprintf("oracle-request-%s-%s-%d-%d-%d",
		input.Flight.Airline, input.Flight.Code, input.Flight.Timestamp, input.Seq, input.Index)
}

// OracleRequestWorkflow has every eligible oracle of the fleet observe the
// flight and report to the ledger. It stops once a report closes the request.
func OracleRequestWorkflow(ctx workflow.Context, input models.OracleRequestInput) (*models.OracleRequestResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Oracle request workflow started", "flight", input.Flight.Code, "index", input.Index)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ObserveTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: SubmitTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    MaxSubmitAttempts,
		},
	})

	var eligible []string
	if err := workflow.ExecuteActivity(ctx, models.ActivityEligibleOracles, input.Index).Get(ctx, &eligible); err != nil {
		logger.Error("Failed to list eligible oracles", "error", err)
		return nil, err
	}
	result := &models.OracleRequestResult{Eligible: len(eligible)}
	if len(eligible) == 0 {
		logger.Warn("No oracle holds the request index", "index", input.Index)
		return result, nil
	}

	// Observations are independent, so they run in parallel.
	observations := make([]workflow.Future, len(eligible))
	for i, oracle := range eligible {
		observations[i] = workflow.ExecuteActivity(ctx, models.ActivityObserveFlightStatus, models.ObserveInput{
			Oracle: oracle,
			Flight: input.Flight,
		})
	}

	for i, oracle := range eligible {
		var status uint8
		if err := observations[i].Get(ctx, &status); err != nil {
			logger.Warn("Oracle failed to observe flight", "oracle", oracle, "error", err)
			result.Rejected++
			continue
		}

		var submitted models.SubmitResult
		err := workflow.ExecuteActivity(submitCtx, models.ActivitySubmitOracleResponse, models.SubmitInput{
			Oracle: oracle,
			Index:  input.Index,
			Flight: input.Flight,
			Status: status,
		}).Get(ctx, &submitted)
		if err != nil {
			logger.Error("Failed to submit oracle response", "oracle", oracle, "error", err)
			result.Rejected++
			continue
		}
		if !submitted.Accepted {
			result.Rejected++
			continue
		}
		result.Submitted++
		if submitted.Closed {
			result.Closed = true
			result.Final = submitted.Final
			logger.Info("Status request closed", "flight", input.Flight.Code, "status", submitted.Final)
			break
		}
	}

	logger.Info("Oracle request workflow finished",
		"submitted", result.Submitted,
		"rejected", result.Rejected,
		"closed", result.Closed,
	)
	return result, nil
}
