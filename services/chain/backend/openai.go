// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

var backendTracer = otel.Tracer("toolchain.chain.backend")

// OpenAIChatClient implements ChatClient against any OpenAI-compatible
// endpoint, typically a llama.cpp or vLLM server on localhost.
//
// Description:
//
//	Wraps sashabaranov/go-openai with the base URL pointed at the
//	local endpoint. An optional rate limiter spaces out requests the
//	way the original harnesses slept between queries.
//
// Thread Safety: OpenAIChatClient is safe for concurrent use.
type OpenAIChatClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// OpenAIOption configures an OpenAIChatClient.
type OpenAIOption func(*openaiOptions)

type openaiOptions struct {
	apiKey   string
	timeout  time.Duration
	interval time.Duration
}

// WithAPIKey sets the bearer token. Local servers usually ignore it
// but some gateways require a non-empty value.
func WithAPIKey(key string) OpenAIOption {
	return func(o *openaiOptions) { o.apiKey = key }
}

// WithTimeout sets the fixed per-call timeout (default 30s).
func WithTimeout(d time.Duration) OpenAIOption {
	return func(o *openaiOptions) { o.timeout = d }
}

// WithRequestInterval enforces a minimum spacing between requests.
// Zero disables the limiter.
func WithRequestInterval(d time.Duration) OpenAIOption {
	return func(o *openaiOptions) { o.interval = d }
}

// NewOpenAIChatClient creates a client for an OpenAI-style endpoint.
//
// Inputs:
//
//	baseURL - The endpoint root, e.g. "http://localhost:8080/v1".
//	model - The model name sent with every request.
//	opts - Optional configuration.
//
// Outputs:
//
//	*OpenAIChatClient - The configured client.
func NewOpenAIChatClient(baseURL, model string, opts ...OpenAIOption) *OpenAIChatClient {
	o := openaiOptions{
		apiKey:  "local",
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(o.apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: o.timeout}

	var limiter *rate.Limiter
	if o.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.interval), 1)
	}

	slog.Info("Initializing chat backend client",
		slog.String("base_url", baseURL),
		slog.String("model", model),
		slog.Duration("timeout", o.timeout),
	)

	return &OpenAIChatClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		limiter: limiter,
	}
}

// Chat implements ChatClient.
//
// Description:
//
//	Issues one chat-completion request with the full message history
//	and tool schemas. Connection and timeout failures map to
//	ErrBackendUnavailable; an error-flagged or empty response maps
//	to ErrBackendProtocol. No retry is attempted.
//
// Thread Safety: This method is safe for concurrent use.
func (c *OpenAIChatClient) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	ctx, span := backendTracer.Start(ctx, "backend.OpenAIChatClient.Chat",
		trace.WithAttributes(
			attribute.String("model", c.model),
			attribute.Int("message_count", len(messages)),
			attribute.Int("tool_count", len(opts.Tools)),
		),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", datatypes.BackendError(datatypes.ErrBackendUnavailable, "rate limiter wait", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if len(opts.Tools) > 0 {
		req.Tools = toOpenAITools(opts.Tools)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			chatRequestDuration.WithLabelValues("protocol_error").Observe(duration.Seconds())
			chatRequestErrors.WithLabelValues(string(datatypes.ErrorKindBackendProtocol)).Inc()
			return "", datatypes.BackendError(datatypes.ErrBackendProtocol, apiErr.Message, nil)
		}

		chatRequestDuration.WithLabelValues("unavailable").Observe(duration.Seconds())
		chatRequestErrors.WithLabelValues(string(datatypes.ErrorKindBackendUnavailable)).Inc()
		return "", datatypes.BackendError(datatypes.ErrBackendUnavailable, "chat completion request", err)
	}

	if len(resp.Choices) == 0 {
		chatRequestDuration.WithLabelValues("protocol_error").Observe(duration.Seconds())
		chatRequestErrors.WithLabelValues(string(datatypes.ErrorKindBackendProtocol)).Inc()
		return "", datatypes.BackendError(datatypes.ErrBackendProtocol, "response contained no choices", nil)
	}

	chatRequestDuration.WithLabelValues("ok").Observe(duration.Seconds())
	slog.Debug("Backend responded",
		slog.Duration("duration", duration),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}

// toOpenAIMessages converts engine messages to the client's type.
func toOpenAIMessages(messages []datatypes.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// toOpenAITools converts tool schemas to the client's type. The
// parameter schema marshals to the same JSON either way.
func toOpenAITools(schemas []datatypes.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, len(schemas))
	for i, s := range schemas {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Function.Name,
				Description: s.Function.Description,
				Parameters:  s.Function.Parameters,
			},
		}
	}
	return out
}
