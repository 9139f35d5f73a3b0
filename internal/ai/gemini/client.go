package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/logger"
)

const (
	provider              = "gemini"
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultTimeout        = 30 * time.Second
	defaultMaxLogLength   = 200
	maxRetryDelay         = 10 * time.Second
	defaultBreakerTrip    = 5
	defaultBreakerCool    = 30 * time.Second
)

var retryAfterRe = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

// sleep waits between attempts; tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Options configures a Client.
type Options struct {
	APIKey            string
	Model             string
	EmbeddingModel    string
	MaxRetries        int
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxLogLength      int
	// BreakerFailures consecutive failed calls open the circuit for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client wraps the Google GenAI SDK and implements ai.Backend.
type Client struct {
	models         modelsAPI
	model          string
	embeddingModel string
	maxRetries     int
	timeout        time.Duration
	maxLogLen      int
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ai.NewExternalServiceError(provider, "create client", ai.ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, opts, log), nil
}

func newClient(models modelsAPI, opts Options, log *zap.Logger) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	embeddingModel := strings.TrimSpace(opts.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	log = logger.WithCommonFields(log, provider, model)

	return &Client{
		models:         models,
		model:          model,
		embeddingModel: embeddingModel,
		maxRetries:     maxRetries,
		timeout:        timeout,
		maxLogLen:      maxLogLen,
		limiter:        limiter,
		breaker:        newBreaker(opts, log),
		logger:         log,
	}
}

// newBreaker stops calling the backend after repeated failures so callers fall back fast.
// Cancellation by the caller does not count as a failure.
func newBreaker(opts Options, log *zap.Logger) *gobreaker.CircuitBreaker {
	trip := opts.BreakerFailures
	if trip == 0 {
		trip = defaultBreakerTrip
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCool
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func (c *Client) Provider() string { return provider }

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// GenerateText sends the instruction as a system instruction and input as the user turn.
func (c *Client) GenerateText(ctx context.Context, instruction, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("input must not be empty")
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	return c.generate(ctx, "generate text", instruction, contents)
}

// GenerateFromDocument sends the document inline next to the instruction. The SDK transmits
// inline bytes base64-encoded.
func (c *Client) GenerateFromDocument(ctx context.Context, instruction string, doc ai.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", errors.New("document must not be empty")
	}
	mimeType := strings.TrimSpace(doc.MIMEType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(doc.Data, mimeType),
		genai.NewPartFromText(instruction),
	}, genai.RoleUser)}

	return c.generate(ctx, "generate from document", "", contents)
}

// Embed returns the embedding of text. Empty text yields an empty vector without a call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if c == nil || c.models == nil {
		return nil, ai.NewExternalServiceError(provider, "embed", ai.ErrNotConfigured)
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	var vector []float32
	err := c.withRetry(ctx, "embed", func(callCtx context.Context) error {
		resp, err := c.models.EmbedContent(callCtx, c.embeddingModel, contents, &genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		})
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return errors.New("gemini api returned no embeddings")
		}
		vector = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, ai.NewExternalServiceError(provider, "embed", err)
	}

	return vector, nil
}

func (c *Client) generate(ctx context.Context, op, instruction string, contents []*genai.Content) (string, error) {
	if c == nil || c.models == nil {
		return "", ai.NewExternalServiceError(provider, op, ai.ErrNotConfigured)
	}

	config := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.1)}
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
	}

	var output string
	err := c.withRetry(ctx, op, func(callCtx context.Context) error {
		resp, err := c.models.GenerateContent(callCtx, c.model, contents, config)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		output, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", ai.NewExternalServiceError(provider, op, err)
	}

	c.logger.Debug("gemini response",
		zap.String("op", op),
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", logger.Preview(output, c.maxLogLen)),
	)

	return output, nil
}

// withRetry runs call through the circuit breaker with a per-attempt timeout, retrying
// temporary failures. An open circuit fails immediately.
func (c *Client) withRetry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retry(ctx, op, call)
	})
	return err
}

func (c *Client) retry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay, retryable := retryDelay(err, attempt)
		if !retryable || attempt == c.maxRetries {
			break
		}

		c.logger.Warn("gemini call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// retryDelay decides whether err is temporary and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	backoff := time.Duration(attempt) * time.Second

	if errors.Is(err, context.DeadlineExceeded) {
		return backoff, true
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if m := retryAfterRe.FindStringSubmatch(apiErr.Message); m != nil {
			seconds, perr := strconv.ParseFloat(m[1], 64)
			if perr == nil {
				wait := time.Duration(seconds * float64(time.Second))
				if wait > maxRetryDelay {
					return 0, false
				}
				return wait, true
			}
		}
		return backoff, true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return backoff, true
	default:
		return 0, false
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned nil response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
