package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cx-tal-miterani/flight-surety/internal/activities"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

var testInput = models.OracleRequestInput{
	Seq:   12,
	Index: 4,
	Flight: models.FlightKey{
		Airline:   "0x000000000000000000000000000000000000000a",
		Code:      "ND1309",
		Timestamp: 1_700_000_000_000,
	},
}

type OracleWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *OracleWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&activities.Activities{})
}

func (s *OracleWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func TestOracleWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(OracleWorkflowTestSuite))
}

func (s *OracleWorkflowTestSuite) TestWorkflow_StopsAtQuorum() {
	oracles := []string{"0x01", "0x02", "0x03", "0x04", "0x05"}
	s.env.OnActivity(models.ActivityEligibleOracles, mock.Anything, uint8(4)).Return(oracles, nil)
	s.env.OnActivity(models.ActivityObserveFlightStatus, mock.Anything, mock.Anything).Return(uint8(20), nil)

	var mu sync.Mutex
	var submitted []string
	s.env.OnActivity(models.ActivitySubmitOracleResponse, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in models.SubmitInput) (*models.SubmitResult, error) {
			mu.Lock()
			defer mu.Unlock()
			submitted = append(submitted, in.Oracle)
			closed := len(submitted) == 3
			res := &models.SubmitResult{Accepted: true, Closed: closed}
			if closed {
				res.Final = in.Status
			}
			return res, nil
		})

	s.env.ExecuteWorkflow(OracleRequestWorkflow, testInput)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var result models.OracleRequestResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(5, result.Eligible)
	s.Equal(3, result.Submitted)
	s.True(result.Closed)
	s.Equal(uint8(20), result.Final)
	s.Equal([]string{"0x01", "0x02", "0x03"}, submitted)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_CountsRejectedReports() {
	s.env.OnActivity(models.ActivityEligibleOracles, mock.Anything, mock.Anything).Return([]string{"0x01", "0x02"}, nil)
	s.env.OnActivity(models.ActivityObserveFlightStatus, mock.Anything, mock.Anything).Return(uint8(10), nil)
	s.env.OnActivity(models.ActivitySubmitOracleResponse, mock.Anything, mock.MatchedBy(func(in models.SubmitInput) bool {
		return in.Oracle == "0x01"
	})).Return(&models.SubmitResult{Accepted: false, Reason: "oracle already responded"}, nil)
	s.env.OnActivity(models.ActivitySubmitOracleResponse, mock.Anything, mock.MatchedBy(func(in models.SubmitInput) bool {
		return in.Oracle == "0x02"
	})).Return(&models.SubmitResult{Accepted: true}, nil)

	s.env.ExecuteWorkflow(OracleRequestWorkflow, testInput)

	s.True(s.env.IsWorkflowCompleted())
	var result models.OracleRequestResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(1, result.Submitted)
	s.Equal(1, result.Rejected)
	s.False(result.Closed)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_NoEligibleOracles() {
	s.env.OnActivity(models.ActivityEligibleOracles, mock.Anything, mock.Anything).Return([]string{}, nil)

	s.env.ExecuteWorkflow(OracleRequestWorkflow, testInput)

	s.True(s.env.IsWorkflowCompleted())
	var result models.OracleRequestResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(0, result.Eligible)
	s.False(result.Closed)
}

func (s *OracleWorkflowTestSuite) TestWorkflow_EligibilityLookupFails() {
	s.env.OnActivity(models.ActivityEligibleOracles, mock.Anything, mock.Anything).Return(nil, errors.New("fleet unavailable"))

	s.env.ExecuteWorkflow(OracleRequestWorkflow, testInput)

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *OracleWorkflowTestSuite) TestWorkflowID_IsStablePerRequest() {
	s.Equal(WorkflowID(testInput), WorkflowID(testInput))
	other := testInput
	other.Index = 5
	s.NotEqual(WorkflowID(testInput), WorkflowID(other))

	// a reissue under the same index is a separate run
	reissued := testInput
	reissued.Seq = testInput.Seq + 1
	s.NotEqual(WorkflowID(testInput), WorkflowID(reissued))
}
