package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/workflows"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"go.temporal.io/sdk/client"
)

// dispatchTimeout bounds a single workflow start.
const dispatchTimeout = 5 * time.Second

// WorkflowStarter is the part of the Temporal client the dispatcher needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// OracleDispatcher starts an OracleRequestWorkflow for every status request
// the ledger emits. A redelivered event maps to the same workflow id.
type OracleDispatcher struct {
	temporal  WorkflowStarter
	taskQueue string
	logger    *slog.Logger
}

func NewOracleDispatcher(temporal WorkflowStarter, taskQueue string, logger *slog.Logger) *OracleDispatcher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &OracleDispatcher{temporal: temporal, taskQueue: taskQueue, logger: logger}
}

// Publish implements ledger.EventSink. Start failures are logged; the
// request stays open and can be fetched again.
func (d *OracleDispatcher) Publish(ctx context.Context, events []ledger.Event) {
	for _, evt := range events {
		if evt.Type != ledger.EventOracleRequest {
			continue
		}
		input := models.OracleRequestInput{
			Seq:         evt.Seq,
			Index:       evt.Index,
			Flight:      flightKeyDTO(evt.Flight),
			RequestedAt: evt.Timestamp,
		}
		workflowOptions := client.StartWorkflowOptions{
			ID:        workflows.WorkflowID(input),
			TaskQueue: d.taskQueue,
		}

		startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		_, err := d.temporal.ExecuteWorkflow(startCtx, workflowOptions, models.OracleRequestWorkflowName, input)
		cancel()
		if err != nil {
			d.logger.Error(
				"failed to start oracle workflow",
				"component", "dispatcher",
				"flight", evt.Flight.String(),
				"index", evt.Index,
				"error", err,
			)
			continue
		}
		d.logger.Info(
			"started oracle workflow",
			"component", "dispatcher",
			"workflow_id", workflowOptions.ID,
			"index", evt.Index,
		)
	}
}

// Fanout publishes every batch to each sink in order.
func Fanout(sinks ...ledger.EventSink) ledger.EventSink {
	return ledger.EventSinkFunc(func(ctx context.Context, events []ledger.Event) {
		for _, sink := range sinks {
			sink.Publish(ctx, events)
		}
	})
}
