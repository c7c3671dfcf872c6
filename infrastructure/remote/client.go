// Package remote implements the HTTP client for the memo service's wire
// contract.
package remote

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
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"easymemo/application/ports"
	pkgerrors "easymemo/pkg/errors"
)

// DefaultRequestTimeout bounds one memo API call
const DefaultRequestTimeout = 10 * time.Second

// ClientConfig configures the API client
type ClientConfig struct {
	BaseURL        string
	AuthToken      string // bearer credential; empty means anonymous
	GuestID        string // anonymous identity, sent when no token is set
	RequestTimeout time.Duration
}

// Client talks to the memo service. Calls run through a circuit breaker so a
// flapping server is cut off early instead of stalling every operation for a
// full timeout; the reachability probe bypasses the breaker since it is the
// signal that decides when to come back.
type Client struct {
	baseURL string
	token   string
	guestID string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ ports.RemoteAPI = (*Client)(nil)

// NewClient creates a memo service client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "memo-api",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.AuthToken,
		guestID: cfg.GuestID,
		httpc:   &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// wire types

type wireMemo struct {
	ServerID  string    `json:"_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type wirePagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasMore     bool `json:"hasMore"`
	Limit       int  `json:"limit"`
}

type wireListResponse struct {
	Memos      []wireMemo     `json:"memos"`
	Pagination wirePagination `json:"pagination"`
}

type wireCreateRequest struct {
	Content string `json:"content"`
}

// ListMemos fetches one page of confirmed memos, newest-first
func (c *Client) ListMemos(ctx context.Context, page, limit int) (*ports.RemotePage, error) {
	endpoint := fmt.Sprintf("%s/memos?page=%s&limit=%s",
		c.baseURL, strconv.Itoa(page), strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp wireListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.NewNetworkError("list memos: malformed response", err)
	}

	result := &ports.RemotePage{
		Memos:       make([]ports.RemoteMemo, 0, len(resp.Memos)),
		CurrentPage: resp.Pagination.CurrentPage,
		TotalPages:  resp.Pagination.TotalPages,
		TotalCount:  resp.Pagination.TotalCount,
		HasMore:     resp.Pagination.HasMore,
		Limit:       resp.Pagination.Limit,
	}
	for _, m := range resp.Memos {
		result.Memos = append(result.Memos, ports.RemoteMemo(m))
	}
	return result, nil
}

// CreateMemo stores a new memo remotely and returns its server identity
func (c *Client) CreateMemo(ctx context.Context, content string) (*ports.RemoteMemo, error) {
	payload, _ := json.Marshal(wireCreateRequest{Content: content})

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/memos", payload)
	if err != nil {
		return nil, err
	}

	var m wireMemo
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, pkgerrors.NewNetworkError("create memo: malformed response", err)
	}

	rm := ports.RemoteMemo(m)
	return &rm, nil
}

// UpdateMemo replaces a memo's content remotely
func (c *Client) UpdateMemo(ctx context.Context, serverID, content string) (*ports.RemoteMemo, error) {
	payload, _ := json.Marshal(wireCreateRequest{Content: content})
	endpoint := c.baseURL + "/memos/" + url.PathEscape(serverID)

	body, err := c.do(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var m wireMemo
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, pkgerrors.NewNetworkError("update memo: malformed response", err)
	}

	rm := ports.RemoteMemo(m)
	return &rm, nil
}

// DeleteMemo removes a memo remotely
func (c *Client) DeleteMemo(ctx context.Context, serverID string) error {
	endpoint := c.baseURL + "/memos/" + url.PathEscape(serverID)
	_, err := c.do(ctx, http.MethodDelete, endpoint, nil)
	return err
}

// Probe checks the reachability endpoint, which succeeds only when the
// service's backing data store is itself reachable. Never returns an error;
// any failure reports false.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// do executes one API request through the circuit breaker and classifies
// failures into the engine's error taxonomy.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{code: resp.StatusCode, body: body}
		}
		return body, nil
	})
	if err != nil {
		return nil, c.classify(method, endpoint, err)
	}
	return result.([]byte), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.guestID != "" {
		req.Header.Set("X-Guest-ID", c.guestID)
	}
}

type statusError struct {
	code int
	body []byte
}

// maxErrorBody bounds how much of a failure response lands in logs
const maxErrorBody = 256

func (e *statusError) Error() string {
	body := bytes.TrimSpace(e.body)
	if len(body) == 0 {
		return fmt.Sprintf("unexpected status %d", e.code)
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("unexpected status %d: %s", e.code, body)
}

func (c *Client) classify(method, endpoint string, err error) error {
	var sErr *statusError
	if errors.As(err, &sErr) {
		if sErr.code == http.StatusNotFound {
			return pkgerrors.NewNotFoundError("memo")
		}
		return pkgerrors.NewNetworkError(
			fmt.Sprintf("%s %s: status %d", method, endpoint, sErr.code), err)
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewNetworkError("memo service circuit open", err)
	}

	var uErr *url.Error
	if errors.As(err, &uErr) && uErr.Timeout() {
		return pkgerrors.NewTimeoutError(method + " " + endpoint)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError(method + " " + endpoint)
	}

	return pkgerrors.NewNetworkError(method+" "+endpoint+" failed", err)
}
