package classification

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/infrastructure/fallback"
	"github.com/pulsearc/agent-core/infrastructure/ratelimit"
	"github.com/pulsearc/agent-core/infrastructure/resilience"
	"github.com/pulsearc/agent-core/infrastructure/serviceauth"
	"github.com/pulsearc/agent-core/internal/crypto"
	"github.com/pulsearc/agent-core/internal/domain"
)

// maxResponseBytes bounds how much of the classifier's HTTP response body
// is read, guarding against a misbehaving endpoint streaming unbounded data.
const maxResponseBytes = 1 << 20

// staleClassificationTTL bounds how long a successful verdict stays eligible
// as a fallback answer for identical evidence once the endpoint is failing.
const staleClassificationTTL = time.Hour

// Config configures an LLMClassifier's upstream chat-completions endpoint.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration

	// ServiceID and ServiceSigningKey, if both set, make the classifier
	// sign each outbound request with a short-lived service JWT (in
	// addition to the bearer API key) so a gateway in front of the
	// classification endpoint can attribute requests to this agent
	// install rather than trusting the API key alone.
	ServiceID         string
	ServiceSigningKey *rsa.PrivateKey
}

// ClassificationResult is the structured verdict an LLMClassifier expects
// back from the model's response content, one per classified block.
type ClassificationResult struct {
	WbsCode    string  `json:"wbs_code"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// LLMClassifier sends BlockEvidence to a chat-completions endpoint and
// parses the model's structured verdict back out. All inference happens
// upstream; this type only packages evidence and unpacks the reply.
type LLMClassifier struct {
	cfg      Config
	client   *ratelimit.RateLimitedClient
	breaker  *resilience.CircuitBreaker
	fallback *fallback.Handler
}

// NewLLMClassifier builds a classifier guarded by a circuit breaker (per
// spec.md §4.7 defaults) and a token-bucket rate limiter over the
// underlying HTTP client.
func NewLLMClassifier(cfg Config) *LLMClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.ServiceSigningKey != nil && cfg.ServiceID != "" {
		generator := serviceauth.NewServiceTokenGenerator(cfg.ServiceSigningKey, cfg.ServiceID, 0)
		httpClient.Transport = serviceauth.NewServiceTokenRoundTripper(httpClient.Transport, generator)
	}
	return &LLMClassifier{
		cfg:    cfg,
		client: ratelimit.NewRateLimitedClient(httpClient, ratelimit.DefaultConfig()),
		breaker: resilience.New(resilience.Config{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			SuccessThreshold: 2,
			HalfOpenMaxCalls: 3,
		}),
		fallback: fallback.NewHandler(fallback.DefaultConfig()),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// Classify packages evidence as the user message of a single
// chat-completions request and parses the model's JSON verdict back out of
// the response's content field. When the endpoint call fails (including a
// circuit breaker trip), it falls back to the last successful verdict for
// identical evidence, if one is still within staleClassificationTTL.
func (c *LLMClassifier) Classify(ctx context.Context, evidence domain.BlockEvidence) (ClassificationResult, error) {
	key := evidenceCacheKey(evidence)

	res := c.fallback.Execute(ctx,
		func(ctx context.Context) (interface{}, error) {
			var result ClassificationResult
			err := c.breaker.Execute(ctx, func() error {
				r, execErr := c.classifyOnce(ctx, evidence)
				if execErr != nil {
					return execErr
				}
				result = r
				return nil
			})
			return result, err
		},
		func(ctx context.Context) (interface{}, error) {
			cached, ok := c.fallback.GetCache(key)
			if !ok {
				return nil, fmt.Errorf("no cached classification available for this evidence")
			}
			return cached, nil
		},
	)
	if res.Err != nil {
		return ClassificationResult{}, res.Err
	}

	result := res.Value.(ClassificationResult)
	if res.Source == "primary" {
		c.fallback.SetCache(key, result, staleClassificationTTL)
	}
	return result, nil
}

// evidenceCacheKey derives a stable fallback-cache key from evidence's
// content, so a stale verdict is only ever reused for identical evidence.
func evidenceCacheKey(evidence domain.BlockEvidence) string {
	data, err := json.Marshal(evidence)
	if err != nil {
		return ""
	}
	return hex.EncodeToString(crypto.Hash256(data))
}

func (c *LLMClassifier) classifyOnce(ctx context.Context, evidence domain.BlockEvidence) (ClassificationResult, error) {
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return ClassificationResult{}, apperrors.Internal("failed to marshal block evidence", err)
	}

	reqBody := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: string(evidenceJSON)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return ClassificationResult{}, apperrors.Internal("failed to marshal chat completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return ClassificationResult{}, apperrors.Internal("failed to build classification request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ClassificationResult{}, apperrors.HTTPTimeout("llm_classify", err)
	}
	defer resp.Body.Close()

	body, err := readAllLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return ClassificationResult{}, apperrors.Internal("failed to read classification response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClassificationResult{}, apperrors.Internal(
			fmt.Sprintf("classification endpoint returned HTTP %d", resp.StatusCode), nil)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return ClassificationResult{}, apperrors.Internal("classification response missing choices[0].message.content", nil)
	}

	var result ClassificationResult
	decoder := json.NewDecoder(bytes.NewReader([]byte(content.String())))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&result); err != nil {
		return ClassificationResult{}, apperrors.Internal("failed to parse classification content as JSON", err)
	}

	return result, nil
}

// readAllLimited reads up to limit+1 bytes, erroring if the body exceeds
// limit rather than silently truncating a classification verdict.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d byte limit", limit)
	}
	return data, nil
}

const classifierSystemPrompt = `You classify a block of developer activity evidence into a WBS element. ` +
	`Respond with a single JSON object: {"wbs_code": string, "confidence": number between 0 and 1, "reasoning": string}. ` +
	`Base your answer only on the evidence provided; do not invent facts.`
