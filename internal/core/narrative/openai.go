package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/platform/observability"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultRateLimitRPS = 1.0
	rateLimiterBurst    = 5

	taskRole  = "role"
	taskStage = "stage"
	taskName  = "name"
)

// OpenAIConfig configures the OpenAI-backed narrative service.
type OpenAIConfig struct {
	APIKey       string
	Model        string
	Timeout      time.Duration
	RateLimitRPS float64
}

// OpenAI assesses roles, stages, and names through the OpenAI chat API. All
// failure modes come back as errs.ErrNarrativeUnavailable so call sites
// treat a flaky upstream exactly like an absent one.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *CircuitBreaker
	logger  zerolog.Logger
}

var _ Service = (*OpenAI)(nil)

// NewOpenAI returns a narrative service backed by the OpenAI chat API.
func NewOpenAI(cfg OpenAIConfig, logger *zerolog.Logger) *OpenAI {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = defaultRateLimitRPS
	}

	componentLogger := logger.With().Str("component", "narrative").Logger()

	return &OpenAI{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), rateLimiterBurst),
		breaker: NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerReset, componentLogger),
		logger:  componentLogger,
	}
}

// Name implements Service.
func (c *OpenAI) Name() string { return "openai" }

// IsAvailable implements Service.
func (c *OpenAI) IsAvailable() bool { return !c.breaker.IsOpen() }

// AssessRole implements Service.
func (c *OpenAI) AssessRole(ctx context.Context, req RoleRequest) (*Assessment, error) {
	prompt := fmt.Sprintf(
		`You classify how a stock participates in an investment theme.
Theme: %s (keywords: %s)
Ticker: %s
Correlation of the ticker's daily returns to the theme's drivers: %.2f
Lead/lag versus the drivers: %d trading days (negative means it leads)

Respond with JSON only:
{"label": "<driver|beneficiary|picks_and_shovels|peripheral>", "confidence": <0..1>, "reasoning": "<one sentence>"}`,
		req.ThemeName, strings.Join(req.Keywords, ", "), req.Ticker, req.Correlation, req.LeadLagDays)

	return c.complete(ctx, taskRole, prompt)
}

// AssessStage implements Service.
func (c *OpenAI) AssessStage(ctx context.Context, req StageRequest) (*Assessment, error) {
	prompt := fmt.Sprintf(
		`You judge the lifecycle stage of an investment theme.
Theme: %s
Age: %.0f days, members: %d
News velocity (recent vs prior window): %.2f
Average 20-day return across members: %.1f%%

Respond with JSON only:
{"label": "<emerging|early|middle|late|exhausted>", "confidence": <0..1>, "reasoning": "<one sentence>"}`,
		req.ThemeName, req.AgeDays, req.MemberCount, req.NewsVelocity, req.AvgReturn20D*100)

	return c.complete(ctx, taskStage, prompt)
}

// SuggestName implements Service.
func (c *OpenAI) SuggestName(ctx context.Context, req NameRequest) (*Assessment, error) {
	var sb strings.Builder

	sb.WriteString("Name the investment theme behind this news cluster in at most four words.\n")
	sb.WriteString("Keywords: " + strings.Join(req.Keywords, ", ") + "\n")

	if len(req.Tickers) > 0 {
		sb.WriteString("Tickers: " + strings.Join(req.Tickers, ", ") + "\n")
	}

	for i, headline := range req.Headlines {
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, headline))
	}

	sb.WriteString(`Respond with JSON only: {"label": "<theme name>", "confidence": <0..1>, "reasoning": "<one sentence>"}`)

	return c.complete(ctx, taskName, sb.String())
}

func (c *OpenAI) complete(ctx context.Context, task, prompt string) (*Assessment, error) {
	if err := c.breaker.Check(); err != nil {
		observability.NarrativeRequests.WithLabelValues(task, "circuit_open").Inc()

		return nil, fmt.Errorf("%w: %v", errs.ErrNarrativeUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		observability.NarrativeRequests.WithLabelValues(task, "rate_limited").Inc()

		return nil, fmt.Errorf("%w: rate limiter: %v", errs.ErrNarrativeUnavailable, err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.breaker.RecordFailure()
		observability.NarrativeRequests.WithLabelValues(task, "error").Inc()

		return nil, fmt.Errorf("%w: chat completion: %v", errs.ErrNarrativeUnavailable, err)
	}

	c.breaker.RecordSuccess()

	if len(resp.Choices) == 0 {
		observability.NarrativeRequests.WithLabelValues(task, "empty").Inc()

		return nil, fmt.Errorf("%w: %v", errs.ErrNarrativeUnavailable, errs.ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug().Str("task", task).Str("content", content).Msg("narrative response")

	assessment, err := parseAssessment(content)
	if err != nil {
		observability.NarrativeRequests.WithLabelValues(task, "malformed").Inc()

		return nil, fmt.Errorf("%w: %v", errs.ErrNarrativeUnavailable, err)
	}

	observability.NarrativeRequests.WithLabelValues(task, "ok").Inc()

	return assessment, nil
}

// parseAssessment decodes an Assessment from model output, tolerating prose
// around the JSON. An empty label counts as an empty response.
func parseAssessment(content string) (*Assessment, error) {
	var a Assessment

	if err := json.Unmarshal([]byte(extractJSON(content)), &a); err != nil {
		return nil, fmt.Errorf("parse assessment: %w", err)
	}

	a.Label = strings.TrimSpace(a.Label)
	if a.Label == "" {
		return nil, errs.ErrEmptyResponse
	}

	if a.Confidence < 0 {
		a.Confidence = 0
	} else if a.Confidence > 1 {
		a.Confidence = 1
	}

	return &a, nil
}

// extractJSON pulls the outermost JSON object (or array) out of model
// output that may carry prose or code fences around it.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	start = strings.Index(text, "[")
	end = strings.LastIndex(text, "]")

	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return text
}
