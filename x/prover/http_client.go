package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// HTTPClient implements ProverClient over the prover REST API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHTTPClient constructs a prover client for the given base URL.
func NewHTTPClient(rawURL string, httpClient *http.Client, log zerolog.Logger) (*HTTPClient, error) {
	if rawURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid prover base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := log.With().Str("component", "prover-client").Logger()

	logger.Info().
		Str("base_url", rawURL).
		Dur("timeout", httpClient.Timeout).
		Msg("HTTP prover client initialized")

	return &HTTPClient{baseURL: parsed, httpClient: httpClient, log: logger}, nil
}

// RequestProof submits a job and returns the id the service assigned.
func (c *HTTPClient) RequestProof(ctx context.Context, job circuits.Job) (string, error) {
	endpoint := c.buildURL("proof")

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal %s job: %w", job.Kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("prepare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("Proof request failed")
		return "", fmt.Errorf("post proof request: %w", err)
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		c.log.Error().Err(err).Stringer("kind", job.Kind).Msg("Prover returned error response")
		return "", err
	}

	var submission submissionResponse
	if err := json.NewDecoder(res.Body).Decode(&submission); err != nil {
		return "", fmt.Errorf("decode prover response: %w", err)
	}
	if !submission.Success {
		return "", fmt.Errorf("prover rejected job: %s", submission.errorMessage())
	}
	if submission.RequestID == "" {
		return "", errors.New("prover response missing request_id")
	}

	c.log.Debug().
		Str("job_id", job.ID).
		Str("request_id", submission.RequestID).
		Stringer("kind", job.Kind).
		Int("payload_bytes", len(body)).
		Msg("Proof job submitted")

	return submission.RequestID, nil
}

// GetStatus fetches the status of a previously submitted job.
func (c *HTTPClient) GetStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if jobID == "" {
		return JobStatus{}, errors.New("jobID is required")
	}
	endpoint := c.buildURL("proof", jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return JobStatus{}, fmt.Errorf("prepare status request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return JobStatus{}, fmt.Errorf("get proof status: %w", err)
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return JobStatus{}, err
	}

	var status statusResponse
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return JobStatus{}, fmt.Errorf("decode status response: %w", err)
	}
	if !status.Success {
		if msg := status.errorMessage(); msg != "" {
			return JobStatus{}, fmt.Errorf("prover reported failure: %s", msg)
		}
		return JobStatus{}, errors.New("prover returned unsuccessful status")
	}

	out := status.Job
	out.ID = jobID
	if out.State == JobFailed && out.Error == "" {
		out.Error = status.errorMessage()
	}

	c.log.Debug().
		Str("job_id", jobID).
		Str("state", string(out.State)).
		Bool("has_result", out.Result != nil).
		Msg("Retrieved proof job status")

	return out, nil
}

func checkStatus(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("prover returned %s: %s", res.Status, string(msg))
}

func (c *HTTPClient) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}

// submissionResponse and statusResponse are the wire bodies of the REST
// API; the http subpackage encodes the same shapes.
type submissionResponse struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	RequestID string  `json:"request_id"`
	Error     *string `json:"error"`
}

func (r submissionResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return r.Message
}

type statusResponse struct {
	Success bool      `json:"success"`
	Error   *string   `json:"error"`
	Job     JobStatus `json:"job"`
}

func (r statusResponse) errorMessage() string {
	if r.Error != nil {
		return *r.Error
	}
	return ""
}

// SubmissionResponse builds the body returned for an accepted job.
func SubmissionResponse(requestID string) any {
	return submissionResponse{Success: true, Message: "queued", RequestID: requestID}
}

// StatusResponse builds the body returned for a status lookup.
func StatusResponse(st JobStatus) any {
	return statusResponse{Success: true, Job: st}
}

// RejectionResponse builds the body returned when a request is refused.
func RejectionResponse(msg string) any {
	return submissionResponse{Success: false, Error: &msg}
}

var _ ProverClient = (*HTTPClient)(nil)
