package ai

import (
	"context"

	"github.com/citaflow/citaflow/pkg/logging"
)

// FallbackClient wraps a primary completion provider with a fallback one.
// If the primary fails, the same request is retried against the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
	onFall   func()
}

// NewFallbackClient creates a fallback-enabled client. If fallback is nil,
// only the primary provider is used.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("ai: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

// OnFallback registers a hook invoked whenever the fallback provider is tried.
func (c *FallbackClient) OnFallback(fn func()) {
	c.onFall = fn
}

func (c *FallbackClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary completion provider failed",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return CompletionResponse{}, err
	}
	if c.onFall != nil {
		c.onFall()
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback completion provider also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return CompletionResponse{}, fallbackErr
	}

	return fallbackResp, nil
}
