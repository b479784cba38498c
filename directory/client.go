// Package directory implements causality.DirectoryClient against the
// backend directory service REST API.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-causality"
)

const (
	salePath    = "/api/v1/sale/"
	mePath      = "/api/v1/me"
	biddersPath = "/api/v1/me/bidders"

	// DefaultTimeout bounds every directory call
	DefaultTimeout = 5 * time.Second
)

// Option customizes a Client
type Option func(*Client)

// WithTimeout overrides the per call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger overrides the client logger
func WithLogger(logger causality.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header sent to the directory
func WithUserAgent(name string) Option {
	return func(c *Client) {
		c.userAgent = name
	}
}

// Client talks to the directory service over HTTP. It is safe for
// concurrent use.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	logger    causality.Logger
}

var _ causality.DirectoryClient = (*Client)(nil)

// NewClient creates a Client for the directory rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		userAgent: "causality",
		logger:    causality.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

type saleResponse struct {
	ID   string `json:"_id"`
	Slug string `json:"id"`
	Name string `json:"name"`
}

type meResponse struct {
	ID           string   `json:"_id"`
	Type         string   `json:"type"`
	PaddleNumber string   `json:"paddle_number"`
	Roles        []string `json:"roles"`
}

type bidderResponse struct {
	ID   string       `json:"id"`
	Sale saleResponse `json:"sale"`
}

// ResolveSale looks a sale up by canonical id or slug
func (c *Client) ResolveSale(ctx context.Context, reference string) (*causality.Sale, error) {
	code, body, err := c.get(ctx, "resolve_sale", salePath+url.PathEscape(reference), "")
	if err != nil {
		return nil, err
	}

	switch {
	case code == fiber.StatusNotFound:
		return nil, saleNotFound(reference)
	case code != fiber.StatusOK:
		return nil, unavailable("resolve_sale", code, fmt.Errorf("unexpected status %d", code))
	}

	var payload saleResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, unavailable("resolve_sale", code, err)
	}

	if payload.ID == "" {
		return nil, saleNotFound(reference)
	}

	return &causality.Sale{
		ID:   payload.ID,
		Slug: payload.Slug,
		Name: payload.Name,
	}, nil
}

// ResolveViewer returns the viewer for a credential. Absent and rejected
// credentials yield nil without an error.
func (c *Client) ResolveViewer(ctx context.Context, credential string) (*causality.Viewer, error) {
	if credential == "" {
		return nil, nil
	}

	code, body, err := c.get(ctx, "resolve_viewer", mePath, credential)
	if err != nil {
		return nil, err
	}

	switch code {
	case fiber.StatusOK:
	case fiber.StatusUnauthorized, fiber.StatusForbidden, fiber.StatusNotFound:
		c.logger.Debug("directory rejected viewer credential with status %d", code)
		return nil, nil
	default:
		return nil, unavailable("resolve_viewer", code, fmt.Errorf("unexpected status %d", code))
	}

	var payload meResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, unavailable("resolve_viewer", code, err)
	}

	if payload.ID == "" {
		return nil, nil
	}

	return &causality.Viewer{
		UserID:       payload.ID,
		IsAdmin:      isAdmin(payload),
		PaddleNumber: payload.PaddleNumber,
	}, nil
}

// ListBidderRecords returns the viewer's bidder registrations in the order
// the directory reports them.
func (c *Client) ListBidderRecords(ctx context.Context, credential string) ([]causality.BidderRecord, error) {
	if credential == "" {
		return nil, nil
	}

	code, body, err := c.get(ctx, "list_bidder_records", biddersPath, credential)
	if err != nil {
		return nil, err
	}

	switch code {
	case fiber.StatusOK:
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return nil, nil
	default:
		return nil, unavailable("list_bidder_records", code, fmt.Errorf("unexpected status %d", code))
	}

	var payload []bidderResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, unavailable("list_bidder_records", code, err)
	}

	records := make([]causality.BidderRecord, 0, len(payload))
	for _, bidder := range payload {
		if bidder.ID == "" || bidder.Sale.ID == "" {
			continue
		}
		records = append(records, causality.BidderRecord{
			BidderID: bidder.ID,
			SaleID:   bidder.Sale.ID,
		})
	}

	return records, nil
}

func (c *Client) get(ctx context.Context, operation, path, credential string) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, unavailable(operation, 0, err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(c.baseURL + path)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.UserAgent(c.userAgent)
	agent.Timeout(timeout)
	if credential != "" {
		agent.Set(causality.HeaderAccessToken, credential)
	}

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, nil, unavailable(operation, 0, err)
	}

	res, err := send(ctx, agent)
	if err != nil {
		c.logger.Warn("directory %s request abandoned: %v", operation, err)
		return 0, nil, unavailable(operation, 0, err)
	}
	if len(res.errs) > 0 {
		c.logger.Error("directory %s request failed: %v", operation, res.errs[0])
		return 0, nil, unavailable(operation, res.code, res.errs[0])
	}

	return res.code, res.body, nil
}

type agentResult struct {
	code int
	body []byte
	errs []error
}

// send runs the request and returns as soon as ctx is done. fiber.Agent has no
// context support, so an abandoned request keeps running until its own timeout.
func send(ctx context.Context, agent *fiber.Agent) (agentResult, error) {
	done := make(chan agentResult, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- agentResult{code: code, body: body, errs: errs}
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return agentResult{}, ctx.Err()
	}
}

func isAdmin(payload meResponse) bool {
	if strings.EqualFold(payload.Type, "Admin") {
		return true
	}
	for _, role := range payload.Roles {
		if strings.EqualFold(role, "admin") {
			return true
		}
	}
	return false
}

func saleNotFound(reference string) error {
	clone := causality.ErrSaleNotFound.Clone()
	if clone == nil {
		return causality.ErrSaleNotFound
	}
	return clone.WithMetadata(map[string]any{"reference": reference})
}

func unavailable(operation string, status int, cause error) error {
	clone := causality.ErrBackendUnavailable.Clone()
	if clone == nil {
		return causality.ErrBackendUnavailable
	}
	clone.Source = cause
	meta := map[string]any{"operation": operation}
	if status != 0 {
		meta["status"] = status
	}
	return clone.WithMetadata(meta)
}
