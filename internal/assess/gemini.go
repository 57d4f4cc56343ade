package assess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/verte-zerg/paperlens/internal/model"
)

const (
	defaultGeminiRate    = time.Second
	defaultGeminiRetries = 2
	defaultGeminiBackoff = 2 * time.Second
)

// errNoScores is returned when a response contains no usable category scores.
var errNoScores = errors.New("response has no category scores")

type generateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiEngine assesses papers with a Gemini model.
type GeminiEngine struct {
	model      string
	categories []string
	generate   generateFunc
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	fallback   *MockEngine
	logger     *zap.Logger
}

// Option configures a GeminiEngine.
type Option func(*GeminiEngine)

// WithRate sets the minimum interval between model calls. Zero disables pacing.
func WithRate(every time.Duration) Option {
	return func(e *GeminiEngine) {
		if every <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
}

// WithRetries sets how many times a failed call is retried.
func WithRetries(n int) Option {
	return func(e *GeminiEngine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithBackoff sets the first retry delay.
func WithBackoff(d time.Duration) Option {
	return func(e *GeminiEngine) { e.backoff = d }
}

// WithLogger sets the logger for masked failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *GeminiEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFallback sets the engine that supplies default scores.
func WithFallback(m *MockEngine) Option {
	return func(e *GeminiEngine) {
		if m != nil {
			e.fallback = m
		}
	}
}

// NewGeminiEngine creates a Gemini-backed engine.
func NewGeminiEngine(ctx context.Context, apiKey, modelName string, categories []string, opts ...Option) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGeminiEngine(modelName, categories, generate, opts...), nil
}

func newGeminiEngine(modelName string, categories []string, generate generateFunc, opts ...Option) *GeminiEngine {
	e := &GeminiEngine{
		model:      modelName,
		categories: append([]string(nil), categories...),
		generate:   generate,
		limiter:    rate.NewLimiter(rate.Every(defaultGeminiRate), 1),
		retries:    defaultGeminiRetries,
		backoff:    defaultGeminiBackoff,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fallback == nil {
		e.fallback = NewMockEngine(e.categories, time.Now().UnixNano())
	}
	return e
}

// Assess asks the model for scores. Missing categories and failed calls are
// filled with fallback scores and flagged.
func (e *GeminiEngine) Assess(ctx context.Context, paper model.Paper) Result {
	prompt := buildPrompt(paper, e.categories)
	delay := e.backoff
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return e.fallbackResult(paper, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return e.fallbackResult(paper, err)
		}
		text, err := e.generate(ctx, prompt)
		if err != nil {
			lastErr = fmt.Errorf("generate: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		scores, missing, err := parseScores(text, e.categories)
		if err != nil {
			lastErr = err
			continue
		}
		if len(missing) == 0 {
			return Result{Scores: scores}
		}
		defaults := e.fallback.Scores(missing)
		for _, c := range missing {
			scores[c] = defaults[c]
		}
		reason := "missing categories: " + strings.Join(missing, ", ")
		e.logger.Warn("partial gemini assessment", zap.String("title", paper.Title), zap.Strings("missing", missing))
		return Result{Scores: scores, Fallback: true, Reason: reason}
	}
	return e.fallbackResult(paper, lastErr)
}

func (e *GeminiEngine) fallbackResult(paper model.Paper, err error) Result {
	reason := "assessment failed"
	if err != nil {
		reason = err.Error()
	}
	e.logger.Warn("gemini assessment failed, using fallback scores",
		zap.String("title", paper.Title), zap.String("model", e.model), zap.Error(err))
	return Result{Scores: e.fallback.Scores(e.categories), Fallback: true, Reason: reason}
}

func buildPrompt(paper model.Paper, categories []string) string {
	var b strings.Builder
	b.WriteString("Analyze the following scientific paper for potential errors and inconsistencies.\n")
	fmt.Fprintf(&b, "Title: %s\n", paper.Title)
	fmt.Fprintf(&b, "Abstract: %s\n\n", paper.Abstract)
	b.WriteString("Assess each of these categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nFor every category give a confidence score from 0 to 100 for your assessment ")
	b.WriteString("and the number of distinct issues found (0 or more).\n")
	b.WriteString(`Reply with JSON only, keyed by the exact category names: {"<category>": {"confidence": <int>, "issues": <int>}}`)
	b.WriteString("\n")
	return b.String()
}

type rawScore struct {
	Confidence *float64 `json:"confidence"`
	Issues     *float64 `json:"issues"`
}

// parseScores reads a model reply. Code fences and surrounding prose are
// ignored, confidence is clamped to [0, 100] and negative issue counts become 0.
// Categories without a complete score are returned in missing.
func parseScores(text string, categories []string) (map[string]model.Score, []string, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, nil, errNoScores
	}
	var raw map[string]rawScore
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	byFold := make(map[string]rawScore, len(raw))
	for k, v := range raw {
		byFold[strings.ToLower(strings.TrimSpace(k))] = v
	}

	scores := make(map[string]model.Score, len(categories))
	var missing []string
	for _, c := range categories {
		rs, ok := raw[c]
		if !ok {
			rs, ok = byFold[strings.ToLower(c)]
		}
		if !ok || rs.Confidence == nil || rs.Issues == nil {
			missing = append(missing, c)
			continue
		}
		scores[c] = model.Score{
			Confidence: clampInt(*rs.Confidence, 0, 100),
			Issues:     clampInt(*rs.Issues, 0, math.MaxInt32),
		}
	}
	if len(scores) == 0 {
		return nil, nil, errNoScores
	}
	sort.Strings(missing)
	return scores, missing, nil
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func clampInt(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	r := math.Round(v)
	if r < float64(lo) {
		return lo
	}
	if r > float64(hi) {
		return hi
	}
	return int(r)
}
