package rescore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

const defaultRemoteTimeout = 10 * time.Second

// Remote calls an external re-scoring service over HTTP. The service
// receives the full rescore request as JSON and answers with a
// RescoreResult.
type Remote struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemote creates a remote rescorer for the given endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *Remote) Name() string { return "remote" }

// Rescore posts the request to the collaborator. Transport failures
// and non-2xx statuses are wrapped in ErrRescoreUnavailable so the
// failover wrapper can match them.
func (r *Remote) Rescore(ctx context.Context, req domain.RescoreRequest) (*domain.RescoreResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rescore request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rescore request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRescoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", domain.ErrRescoreUnavailable, resp.StatusCode)
	}

	var result domain.RescoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRescoreUnavailable, err)
	}

	if result.RiskScore < 0 || result.RiskScore > 100 {
		return nil, fmt.Errorf("%w: score %d out of range", domain.ErrRescoreUnavailable, result.RiskScore)
	}

	return &result, nil
}
