package services

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the closed set of ways a provider call can fail.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuth
	KindValidation
	KindRateLimited
	KindNetwork
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// GatewayError is the only error type SearchFlights returns.
type GatewayError struct {
	Kind ErrorKind
	// ProviderStatus is the HTTP status the provider answered with, 0 if it never answered.
	ProviderStatus int
	// Detail is the provider's error payload (json.RawMessage or string), passed on verbatim.
	Detail any
	Err    error
}

func (e *GatewayError) Error() string {
	if e.ProviderStatus != 0 {
		return fmt.Sprintf("amadeus %s error (%d): %v", e.Kind, e.ProviderStatus, e.Err)
	}
	return fmt.Sprintf("amadeus %s error: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// AsGatewayError extracts a *GatewayError from err, wrapping anything else as KindUnknown.
func AsGatewayError(err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{Kind: KindUnknown, Err: err}
}

// classifyTransportError sorts failures that happened before the provider answered.
func classifyTransportError(err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GatewayError{Kind: KindTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return &GatewayError{Kind: KindNetwork, Err: err}
	}

	return &GatewayError{Kind: KindUnknown, Err: err}
}

// classifyStatus maps a non-2xx provider answer to a kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 400:
		return KindValidation
	case status == 429:
		return KindRateLimited
	case status == 504:
		return KindTimeout
	default:
		return KindUnknown
	}
}
