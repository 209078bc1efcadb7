package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cx-tal-miterani/flight-surety/shared/models"
)

// CallerHeader carries the acting address on every API call.
const CallerHeader = "X-Caller-Address"

// StatusError is a non-2xx answer from the API server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Code, e.Message)
}

// Permanent reports whether retrying the same call cannot succeed.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

// APIClient talks to the flight surety API server on behalf of oracles.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// RegisterOracle pays the registration fee for oracle and returns its indexes.
func (c *APIClient) RegisterOracle(ctx context.Context, oracle, value string) ([]int, error) {
	var resp models.OracleIndexesResponse
	err := c.do(ctx, http.MethodPost, "/api/oracles", oracle, models.ValueRequest{Value: value}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Indexes, nil
}

// OracleIndexes returns the indexes of an already registered oracle.
func (c *APIClient) OracleIndexes(ctx context.Context, oracle string) ([]int, error) {
	var resp models.OracleIndexesResponse
	err := c.do(ctx, http.MethodGet, "/api/oracles/"+oracle+"/indexes", oracle, nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Indexes, nil
}

// SubmitResponse posts an oracle's report.
func (c *APIClient) SubmitResponse(ctx context.Context, oracle string, req models.OracleResponseRequest) (*models.OracleResponseResult, error) {
	var resp models.OracleResponseResult
	if err := c.do(ctx, http.MethodPost, "/api/oracle-responses", oracle, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) do(ctx context.Context, method, path, caller string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerHeader, caller)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
