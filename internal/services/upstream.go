package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"marketbot/bot-go/internal/metrics"
)

var (
	ErrTickerNotFound = errors.New("ticker not found")
	ErrNoPriceData    = errors.New("no price data")
	ErrZeroBasePrice  = errors.New("first price in window is zero")
	ErrCircuitOpen    = errors.New("circuit breaker open")
)

const (
	providerSearch = "yahoo_search"
	providerChart  = "yahoo_chart"
	providerRender = "quickchart"
)

// UpstreamError is a non-2xx answer from a provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
}

func newUpstreamError(provider string, res *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &UpstreamError{Provider: provider, Status: res.StatusCode, Body: string(body)}
}

const (
	outcomeOK          = "ok"
	outcomeTimeout     = "timeout"
	outcomeStatus4xx   = "status_4xx"
	outcomeStatus5xx   = "status_5xx"
	outcomeDecode      = "decode"
	outcomeCircuitOpen = "circuit_open"
	outcomeNotFound    = "not_found"
	outcomeError       = "error"
)

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// classifyUpstream maps a provider call result onto a metrics outcome label.
func classifyUpstream(err error) string {
	if err == nil {
		return outcomeOK
	}
	if errors.Is(err, ErrCircuitOpen) {
		return outcomeCircuitOpen
	}
	if errors.Is(err, ErrTickerNotFound) {
		return outcomeNotFound
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Status == http.StatusRequestTimeout || upErr.Status == http.StatusGatewayTimeout {
			return outcomeTimeout
		}
		if upErr.Status >= 400 && upErr.Status < 500 {
			return outcomeStatus4xx
		}
		return outcomeStatus5xx
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcomeTimeout
	}
	var decErr *decodeError
	if errors.As(err, &decErr) {
		return outcomeDecode
	}
	return outcomeError
}

// tripsBreaker reports whether the outcome says the provider itself is unhealthy.
func tripsBreaker(outcome string) bool {
	switch outcome {
	case outcomeTimeout, outcomeStatus5xx, outcomeDecode, outcomeError:
		return true
	}
	return false
}

// guarded runs call behind cb and records its outcome.
func guarded(m *metrics.Metrics, provider string, cb *circuitBreaker, call func() error) error {
	if !cb.allow() {
		m.Upstream(provider, outcomeCircuitOpen, 0)
		return fmt.Errorf("%s: %w", provider, ErrCircuitOpen)
	}
	start := time.Now()
	err := call()
	outcome := classifyUpstream(err)
	m.Upstream(provider, outcome, time.Since(start))
	if tripsBreaker(outcome) {
		cb.fail()
	} else {
		cb.success()
	}
	return err
}
