package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// defaultUserAgent is sent when no WithUserAgent option is given.
const defaultUserAgent = "dualotp"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// Client calls the OTP service's send and verify endpoints.
// A Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		userAgent:  defaultUserAgent,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendCodes asks the service to deliver one code to the mobile number and
// one to the email address. The contact is sent as given; callers validate.
func (c *Client) SendCodes(ctx context.Context, contact ContactInfo) (SendResponse, error) {
	var resp SendResponse
	status, err := c.post(ctx, OpSend, SendPath, contact, &resp)
	if err != nil {
		return SendResponse{}, err
	}
	if !is2xx(status) || !resp.Success {
		return resp, &RejectedError{Op: OpSend, StatusCode: status, Message: resp.Message}
	}
	return resp, nil
}

// VerifyCodes submits the two codes for checking.
func (c *Client) VerifyCodes(ctx context.Context, req VerificationRequest) (VerifyResponse, error) {
	var resp VerifyResponse
	status, err := c.post(ctx, OpVerify, VerifyPath, req, &resp)
	if err != nil {
		return VerifyResponse{}, err
	}
	if !is2xx(status) || !resp.Verified {
		return resp, &RejectedError{Op: OpVerify, StatusCode: status, Message: resp.Message}
	}
	return resp, nil
}

// post sends body as JSON to path and decodes the reply into out.
// The body is decoded before the status is inspected, so an undecodable
// reply is a TransportError whatever its status.
func (c *Client) post(ctx context.Context, op, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, &TransportError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
	}

	url := joinURL(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, &TransportError{Op: op, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	c.logger.DebugContext(ctx, "otp request", "op", op, "url", url)

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "otp request failed", "op", op, "error", err)
		return 0, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return 0, &TransportError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.logger.DebugContext(ctx, "otp response is null", "op", op, "status", res.StatusCode)
		return 0, &TransportError{Op: op, Err: fmt.Errorf("decoding response (status %d): body is null", res.StatusCode)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.DebugContext(ctx, "otp response undecodable", "op", op, "status", res.StatusCode, "error", err)
		return 0, &TransportError{Op: op, Err: fmt.Errorf("decoding response (status %d): %w", res.StatusCode, err)}
	}

	c.logger.DebugContext(ctx, "otp response",
		"op", op,
		"status", res.StatusCode,
		"duration", time.Since(start),
	)
	return res.StatusCode, nil
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}

// IsRejected reports whether err is a server-reported failure.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsTransport reports whether err is a transport or decode failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
