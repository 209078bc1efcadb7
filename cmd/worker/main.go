package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/activities"
	"github.com/cx-tal-miterani/flight-surety/internal/config"
	"github.com/cx-tal-miterani/flight-surety/internal/workflows"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Register the oracle fleet with the API server
	api := activities.NewAPIClient(cfg.APIURL, nil)
	fleet := activities.NewFleet(cfg.OracleSeed)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	log.Printf("Registering %d oracles with %s...", cfg.OracleCount, cfg.APIURL)
	err = activities.RegisterFleet(ctx, api, fleet, cfg.OracleCount)
	cancel()
	if err != nil {
		log.Fatalf("Failed to register oracle fleet: %v", err)
	}
	log.Printf("Oracle fleet ready (%d oracles)", fleet.Size())

	// Connect to Temporal
	log.Printf("Connecting to Temporal at %s...", cfg.TemporalHost)
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	defer c.Close()
	log.Println("Connected to Temporal")

	w := worker.New(c, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.OracleRequestWorkflow, workflow.RegisterOptions{Name: models.OracleRequestWorkflowName})

	acts := activities.NewActivities(api, fleet)
	w.RegisterActivityWithOptions(acts.EligibleOracles, activity.RegisterOptions{Name: models.ActivityEligibleOracles})
	w.RegisterActivityWithOptions(acts.ObserveFlightStatus, activity.RegisterOptions{Name: models.ActivityObserveFlightStatus})
	w.RegisterActivityWithOptions(acts.SubmitOracleResponse, activity.RegisterOptions{Name: models.ActivitySubmitOracleResponse})

	log.Printf("Starting Temporal worker on queue %s...", cfg.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
