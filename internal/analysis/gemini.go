package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"google.golang.org/genai"

	"github.com/saveleva/disasterai/internal/config"
)

const (
	maxAttempts     = 3
	baseRetryDelay  = 2 * time.Second
	maxRetryDelay   = 10 * time.Second
	maxOutputTokens = 8192
)

// Gemini analyzes documents through Google's Gemini API. When no API key is
// configured the client is nil and Analyze returns a deterministic fallback
// result, keeping the rest of the pipeline exercisable offline.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	g := &Gemini{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "gemini"),
	}

	if cfg.APIKey == "" {
		g.logger.Warn("no gemini api key configured, analysis will return fallback results")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Analyze sends the document to Gemini and parses the structured response.
// Transient API failures are retried with exponential backoff and jitter;
// the caller only sees the error once the retry budget is exhausted.
func (g *Gemini) Analyze(ctx context.Context, req Request, taskID string) (*Result, error) {
	start := time.Now()
	documentID := "doc_" + taskID

	if g.client == nil {
		return fallbackResult(taskID, documentID), nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents, err := g.buildContents(req)
	if err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.1),
		MaxOutputTokens:   maxOutputTokens,
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		g.logger.Info("calling gemini api",
			"task_id", taskID, "model", g.model, "attempt", attempt)

		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
		if err == nil {
			result, parseErr := parseModelResponse(resp.Text())
			if parseErr != nil {
				// A malformed body is not going to improve on retry.
				return nil, fmt.Errorf("parse gemini response: %w", parseErr)
			}
			result.TaskID = taskID
			result.DocumentID = documentID
			result.Timestamp = time.Now().UTC()
			result.ProcessingTimeMS = time.Since(start).Milliseconds()
			result.ModelUsed = g.model
			return result, nil
		}

		lastErr = err
		g.logger.Error("gemini api call failed",
			"task_id", taskID, "attempt", attempt, "error", err)

		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt, rng)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("analysis cancelled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("gemini analysis failed after %d attempts: %w", maxAttempts, lastErr)
}

func (g *Gemini) buildContents(req Request) ([]*genai.Content, error) {
	var parts []*genai.Part

	if req.DocumentData != "" {
		raw, err := base64.StdEncoding.DecodeString(req.DocumentData)
		if err != nil {
			return nil, fmt.Errorf("decode document data: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: req.MIMEType, Data: raw},
		})
	}

	parts = append(parts, &genai.Part{Text: analysisPrompt(req.AnalysisMode)})

	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}, nil
}

// backoffDelay computes baseDelay * 2^(attempt-1) with jitter in [0.5, 1.0],
// capped at maxRetryDelay.
func backoffDelay(attempt int, rng *rand.Rand) time.Duration {
	backoff := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	jitter := 0.5 + rng.Float64()*0.5
	delay := time.Duration(backoff * jitter)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
