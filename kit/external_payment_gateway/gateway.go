package external_payment_gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout     = errors.New("gateway timeout")
	ErrServer      = errors.New("gateway 5xx")
	ErrClient      = errors.New("gateway 4xx")
	ErrMalformed   = errors.New("gateway response malformed")
	ErrUnreachable = errors.New("gateway unreachable")
	ErrCircuitOpen = errors.New("circuit open")
	ErrEnvironment = errors.New("gateway environment invalid")
)

type EnvironmentName string

const (
	EnvTest       EnvironmentName = "test"
	EnvProduction EnvironmentName = "production"
)

func (n EnvironmentName) Valid() bool {
	return n == EnvTest || n == EnvProduction
}

// Environment carries everything needed to talk to one provider deployment.
// It is passed to every call; there is no process-wide client handle.
type Environment struct {
	Name          EnvironmentName
	BaseURL       string
	ClientID      string
	ClientSecret  string
	ClientVersion string
}

func (e Environment) Validate() error {
	if !e.Name.Valid() {
		return fmt.Errorf("%w: unknown name %q", ErrEnvironment, e.Name)
	}
	if e.BaseURL == "" {
		return fmt.Errorf("%w: %s: base url required", ErrEnvironment, e.Name)
	}
	if e.ClientID == "" || e.ClientSecret == "" {
		return fmt.Errorf("%w: %s: client credentials required", ErrEnvironment, e.Name)
	}
	return nil
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type PayRequest struct {
	MerchantOrderID string            `json:"merchantOrderId"`
	AmountMinor     int64             `json:"amount"`
	RedirectURL     string            `json:"redirectUrl"`
	MetaInfo        map[string]string `json:"metaInfo,omitempty"`
}

type PayResponse struct {
	RedirectURL     string
	ProviderOrderID string
	State           string
	Raw             map[string]any
}

type PaymentState string

const (
	StateSuccess PaymentState = "SUCCESS"
	StatePending PaymentState = "PENDING"
	StateFailed  PaymentState = "FAILED"
)

type StatusResponse struct {
	State        PaymentState
	ResponseCode string
	Raw          map[string]any
}

// NormalizeState maps the provider's state vocabulary onto the three states
// the reconciler understands.
func NormalizeState(s string) (PaymentState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETED", "SUCCESS", "PAYMENT_SUCCESS":
		return StateSuccess, nil
	case "PENDING", "PAYMENT_PENDING", "INITIATED", "PROCESSING":
		return StatePending, nil
	case "FAILED", "PAYMENT_ERROR", "PAYMENT_DECLINED", "DECLINED", "CANCELLED", "EXPIRED":
		return StateFailed, nil
	default:
		return "", fmt.Errorf("%w: unknown payment state %q", ErrMalformed, s)
	}
}

type Gateway interface {
	Authenticate(ctx context.Context, env Environment) (Token, error)
	Pay(ctx context.Context, env Environment, req PayRequest) (*PayResponse, error)
	QueryStatus(ctx context.Context, env Environment, gatewayOrderID string) (*StatusResponse, error)
}

// GatewayError is returned for every failed provider call. Err is one of the
// package sentinels; Raw holds whatever the provider sent back.
type GatewayError struct {
	Op         string
	Reason     string
	StatusCode int
	Raw        map[string]any
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %v", e.Op, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Payload is the error as a storable document: the provider body when there
// is one plus the classification.
func (e *GatewayError) Payload() map[string]any {
	out := map[string]any{
		"error":     e.Reason,
		"operation": e.Op,
	}
	if e.StatusCode != 0 {
		out["statusCode"] = e.StatusCode
	}
	if len(e.Raw) > 0 {
		out["raw"] = e.Raw
	}
	return out
}

func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsRetryable reports failures that may succeed on a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, ErrUnreachable) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded)
}
