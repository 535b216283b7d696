package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/requestid"
)

// ExecuteFunc runs a script or flow and returns its result; the runtime
// that actually executes the payload lives outside this package. The
// worker package never interprets a job's payload itself — it only
// calls this and archives whatever it returns.
type ExecuteFunc func(ctx context.Context, job *domain.Job) (success bool, result map[string]any, err error)

// HTTPExecutor is the default ExecuteFunc: it posts the job to the
// configured runtime's HTTP endpoint and interprets a 2xx response body
// as the result, the same way an earlier Executor issued callback
// requests — adapted here from an arbitrary-URL-per-job model to a
// single runtime base URL plus a script/flow path, since this core owns
// the queue and scheduler, not the language runtimes that actually run
// a script.
type HTTPExecutor struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func NewHTTPExecutor(baseURL string, logger *slog.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "executor"),
	}
}

type runRequest struct {
	JobID  string         `json:"job_id"`
	Kind   domain.Kind    `json:"kind"`
	Args   map[string]any `json:"args"`
	IsFlow bool           `json:"is_flow"`
}

// Execute implements ExecuteFunc by delegating to the configured script
// runtime over HTTP. script_hash and preview jobs post to /run/script,
// flow jobs to /run/flow; dependencies jobs post to /run/dependencies.
func (e *HTTPExecutor) Execute(ctx context.Context, job *domain.Job) (bool, map[string]any, error) {
	start := time.Now()

	path := "/run/script"
	switch job.Kind {
	case domain.KindFlow:
		path = "/run/flow"
	case domain.KindDependencies:
		path = "/run/dependencies"
	}

	body, err := json.Marshal(runRequest{
		JobID:  job.ID,
		Kind:   job.Kind,
		Args:   job.Args,
		IsFlow: job.Kind == domain.KindFlow,
	})
	if err != nil {
		return false, nil, fmt.Errorf("marshal run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, nil, fmt.Errorf("build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)
	ctx = requestid.WithRequestID(ctx, reqID)

	e.logger.InfoContext(ctx, "executing job", "job_id", job.ID, "kind", job.Kind, "path", path)

	resp, err := e.client.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("%w: run request: %v", domain.ErrExecution, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, fmt.Errorf("%w: read run response: %v", domain.ErrExecution, err)
	}

	duration := time.Since(start)
	e.logger.InfoContext(ctx, "job execution finished",
		"job_id", job.ID, "status", resp.StatusCode, "duration", duration)

	var result map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			result = map[string]any{"raw": string(raw)}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, result, nil
	}
	return true, result, nil
}
