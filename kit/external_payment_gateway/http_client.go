package external_payment_gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	pathToken  = "/oauth/token"
	pathPay    = "/checkout/pay"
	pathStatus = "/order/%s/status"

	maxBodyBytes = 1 << 20
)

// HTTPClient talks to the provider's REST API. A fresh token is fetched for
// every Pay and QueryStatus.
type HTTPClient struct {
	hc      *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

type HTTPOption func(*HTTPClient)

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.hc = hc }
}

// WithRateLimit caps outbound calls at rps with the given burst.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(c *HTTPClient) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func NewHTTPClient(timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &HTTPClient{timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: timeout}
	}
	return c
}

func (c *HTTPClient) Authenticate(ctx context.Context, env Environment) (Token, error) {
	if err := env.Validate(); err != nil {
		return Token{}, &GatewayError{Op: "authenticate", Reason: "invalid environment", Err: errors.Join(ErrClient, err)}
	}
	form := url.Values{
		"grant_type":     {"client_credentials"},
		"client_id":      {env.ClientID},
		"client_secret":  {env.ClientSecret},
		"client_version": {env.ClientVersion},
	}
	body, raw, err := c.do(ctx, "authenticate", http.MethodPost, env.BaseURL+pathToken,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), "")
	if err != nil {
		return Token{}, err
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return Token{}, &GatewayError{Op: "authenticate", Reason: "missing access token", Raw: raw, Err: ErrMalformed}
	}
	if tok.TokenType == "" {
		tok.TokenType = "O-Bearer"
	}
	return tok, nil
}

type payResponseBody struct {
	RedirectURL     string `json:"redirectUrl"`
	ProviderOrderID string `json:"providerOrderId"`
	OrderID         string `json:"orderId"`
	State           string `json:"state"`
}

func (c *HTTPClient) Pay(ctx context.Context, env Environment, req PayRequest) (*PayResponse, error) {
	if req.MerchantOrderID == "" || req.AmountMinor <= 0 {
		return nil, &GatewayError{Op: "pay", Reason: "invalid pay request", Err: ErrClient}
	}
	tok, err := c.Authenticate(ctx, env)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &GatewayError{Op: "pay", Reason: "encode request", Err: errors.Join(ErrClient, err)}
	}
	body, raw, err := c.do(ctx, "pay", http.MethodPost, env.BaseURL+pathPay,
		"application/json", bytes.NewReader(payload), authorization(tok))
	if err != nil {
		return nil, err
	}

	var pr payResponseBody
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, &GatewayError{Op: "pay", Reason: "decode response", Raw: raw, Err: ErrMalformed}
	}
	providerID := pr.ProviderOrderID
	if providerID == "" {
		providerID = pr.OrderID
	}
	if pr.RedirectURL == "" || providerID == "" {
		return nil, &GatewayError{Op: "pay", Reason: "missing redirect url or order id", Raw: raw, Err: ErrMalformed}
	}
	return &PayResponse{
		RedirectURL:     pr.RedirectURL,
		ProviderOrderID: providerID,
		State:           pr.State,
		Raw:             raw,
	}, nil
}

type statusResponseBody struct {
	PaymentState string `json:"paymentState"`
	State        string `json:"state"`
	ResponseCode string `json:"responseCode"`
}

func (c *HTTPClient) QueryStatus(ctx context.Context, env Environment, gatewayOrderID string) (*StatusResponse, error) {
	if gatewayOrderID == "" {
		return nil, &GatewayError{Op: "status", Reason: "gateway order id required", Err: ErrClient}
	}
	tok, err := c.Authenticate(ctx, env)
	if err != nil {
		return nil, err
	}
	endpoint := env.BaseURL + strings.Replace(pathStatus, "%s", url.PathEscape(gatewayOrderID), 1)
	body, raw, err := c.do(ctx, "status", http.MethodGet, endpoint, "", nil, authorization(tok))
	if err != nil {
		return nil, err
	}

	var sr statusResponseBody
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, &GatewayError{Op: "status", Reason: "decode response", Raw: raw, Err: ErrMalformed}
	}
	s := sr.PaymentState
	if s == "" {
		s = sr.State
	}
	state, err := NormalizeState(s)
	if err != nil {
		return nil, &GatewayError{Op: "status", Reason: "unknown payment state", Raw: raw, Err: err}
	}
	return &StatusResponse{State: state, ResponseCode: sr.ResponseCode, Raw: raw}, nil
}

func authorization(tok Token) string {
	return tok.TokenType + " " + tok.AccessToken
}

// do performs one bounded request and classifies the outcome. raw is the
// decoded JSON body when the provider sent one.
func (c *HTTPClient) do(ctx context.Context, op, method, endpoint, contentType string, body io.Reader, auth string) ([]byte, map[string]any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, &GatewayError{Op: op, Reason: "rate limit wait", Err: errors.Join(ErrTimeout, err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, &GatewayError{Op: op, Reason: "build request", Err: errors.Join(ErrClient, err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, &GatewayError{Op: op, Reason: "transport", Err: classifyTransport(ctx, err)}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &GatewayError{Op: op, Reason: "read body", StatusCode: resp.StatusCode, Err: classifyTransport(ctx, err)}
	}
	raw := decodeRaw(b)

	switch {
	case resp.StatusCode >= 500:
		return nil, raw, &GatewayError{Op: op, Reason: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode, Raw: raw, Err: ErrServer}
	case resp.StatusCode >= 400:
		return nil, raw, &GatewayError{Op: op, Reason: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode, Raw: raw, Err: ErrClient}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, raw, &GatewayError{Op: op, Reason: "unexpected status", StatusCode: resp.StatusCode, Raw: raw, Err: ErrMalformed}
	}
	if raw == nil {
		return nil, nil, &GatewayError{Op: op, Reason: "non-json body", StatusCode: resp.StatusCode, Err: ErrMalformed}
	}
	return b, raw, nil
}

func classifyTransport(ctx context.Context, err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Join(ErrTimeout, err)
	case errors.As(err, &ne) && ne.Timeout():
		return errors.Join(ErrTimeout, err)
	default:
		return errors.Join(ErrUnreachable, err)
	}
}

func decodeRaw(b []byte) map[string]any {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
