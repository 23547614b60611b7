package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidgen/internal/infra"
	"vidgen/internal/job"
)

// ErrNoJobID indicates a create response that did not carry a job identifier.
var ErrNoJobID = errors.New("api: no job id in response")

// StatusError is a non-2xx response from the backend. It carries the HTTP
// status and the raw body so callers can distinguish a not-found race from a
// real server failure.
type StatusError struct {
	Code    int
	Body    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// NotFound reports whether the backend answered 404.
func (e *StatusError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

// IsNotFound reports whether err is a backend 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.NotFound()
}

// Options configures the backend API client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Timeout    time.Duration
}

// Client performs HTTP calls against the video-generation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", opts.BaseURL, err)
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// GenerateRequest is the body of a create-job call.
type GenerateRequest struct {
	Prompt  string `json:"prompt"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Seconds int    `json:"n_seconds"`
}

type createResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateGeneration submits a generation request and returns the assigned job
// id. A 2xx response without an id is treated as a failure.
func (c *Client) CreateGeneration(ctx context.Context, req GenerateRequest) (string, error) {
	raw, err := c.post(ctx, "/api/generate", req)
	if err != nil {
		return "", err
	}
	var decoded createResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("api: decode create response: %w", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", ErrNoJobID
	}
	c.logger.Debug().Str("job_id", decoded.ID).Msg("api: generation created")
	return decoded.ID, nil
}

// JobStatus reads the current status document for a job. A backend 404 comes
// back as a *StatusError recognizable via IsNotFound.
func (c *Client) JobStatus(ctx context.Context, id string) (*job.StatusUpdate, error) {
	raw, err := c.get(ctx, "/api/job/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var update job.StatusUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, fmt.Errorf("api: decode status response: %w", err)
	}
	return &update, nil
}

// get issues a GET with JSON negotiation headers and a cache-busting
// timestamp so intermediaries cannot serve a stale status document.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("api: build request url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("api: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(raw)}
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil {
			if detail.Error != "" {
				statusErr.Message = detail.Error
			} else if detail.Message != "" {
				statusErr.Message = detail.Message
			}
		}
		return nil, statusErr
	}
	return raw, nil
}
