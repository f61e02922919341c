package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/mail"
)

// ErrNotConfigured is returned by strategy constructors when required
// provider settings are missing.
var ErrNotConfigured = errors.New("strategy not configured")

// Model generation settings shared by both model-backed strategies. Low
// temperature keeps extraction output stable.
const (
	modelTemperature = 0.2
	modelMaxTokens   = 1024
)

// Cloud API rate limiting: 50 requests per minute with small bursts.
const (
	cloudRateLimit = 50.0 / 60.0
	cloudBurst     = 5
)

// ModelClient is the minimal completion seam over a language model.
type ModelClient interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// langchainClient adapts a langchaingo model to ModelClient.
type langchainClient struct {
	llm llms.Model
}

func (c *langchainClient) Call(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(modelTemperature),
		llms.WithMaxTokens(modelMaxTokens),
	)
}

// NewCloudModel builds the hosted-API model client from provider config.
func NewCloudModel(cfg config.ProviderConfig) (ModelClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("cloud provider: %w", ErrNotConfigured)
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey.Value()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud model client: %w", err)
	}
	return &langchainClient{llm: llm}, nil
}

// NewLocalModel builds the in-environment model client (ollama).
func NewLocalModel(cfg config.ProviderConfig) (ModelClient, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create local model client: %w", err)
	}
	return &langchainClient{llm: llm}, nil
}

// CloudStrategy extracts fields via a hosted inference endpoint. Message
// content is redacted before it leaves the controlled environment, and
// every call is bounded by the configured timeout.
type CloudStrategy struct {
	client   ModelClient
	redactor *mail.Classifier
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewCloudStrategy builds the cloud strategy around the given model client.
func NewCloudStrategy(client ModelClient, redactor *mail.Classifier, timeout time.Duration) *CloudStrategy {
	return &CloudStrategy{
		client:   client,
		redactor: redactor,
		limiter:  rate.NewLimiter(rate.Limit(cloudRateLimit), cloudBurst),
		timeout:  timeout,
	}
}

// ID implements Strategy.
func (s *CloudStrategy) ID() ID { return StrategyCloud }

// Available implements Strategy.
func (s *CloudStrategy) Available() bool { return s.client != nil }

// Extract implements Strategy.
func (s *CloudStrategy) Extract(ctx context.Context, msg mail.RawMessage) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, &Error{Strategy: StrategyCloud, Cause: err, Retryable: false}
	}

	body := mail.Preprocess(msg.Body)
	body = s.redactor.Redact(body)

	return extractWithModel(ctx, StrategyCloud, s.client, s.timeout, msg.ID, body)
}

// LocalStrategy extracts fields via a locally hosted model. No content
// redaction is applied: nothing leaves the controlled environment.
type LocalStrategy struct {
	client  ModelClient
	timeout time.Duration
}

// NewLocalStrategy builds the local strategy around the given model client.
func NewLocalStrategy(client ModelClient, timeout time.Duration) *LocalStrategy {
	return &LocalStrategy{client: client, timeout: timeout}
}

// ID implements Strategy.
func (s *LocalStrategy) ID() ID { return StrategyLocal }

// Available implements Strategy.
func (s *LocalStrategy) Available() bool { return s.client != nil }

// Extract implements Strategy.
func (s *LocalStrategy) Extract(ctx context.Context, msg mail.RawMessage) (Result, error) {
	body := mail.Preprocess(msg.Body)
	return extractWithModel(ctx, StrategyLocal, s.client, s.timeout, msg.ID, body)
}

// extractWithModel runs one bounded model call and parses the response.
// Call failures are retryable (timeout, unreachable endpoint, upstream
// errors); an unparseable response is not.
func extractWithModel(ctx context.Context, id ID, client ModelClient, timeout time.Duration, messageID, body string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	response, err := client.Call(ctx, BuildPrompt(body))
	if err != nil {
		retryable := !errors.Is(err, context.Canceled)
		return Result{}, &Error{Strategy: id, Cause: err, Retryable: retryable}
	}

	fields, confidence, warnings, err := ParseModelResponse(response)
	if err != nil {
		return Result{}, &Error{Strategy: id, Cause: err, Retryable: false}
	}

	return Result{
		MessageID:  messageID,
		Strategy:   id,
		Fields:     fields,
		Confidence: confidence,
		Warnings:   warnings,
	}, nil
}

var (
	_ Strategy = (*CloudStrategy)(nil)
	_ Strategy = (*LocalStrategy)(nil)
)
