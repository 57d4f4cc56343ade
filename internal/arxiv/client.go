// Package arxiv fetches paper metadata from the arXiv export API.
package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/paperlens/internal/model"
)

const (
	// DefaultBaseURL is the arXiv query endpoint.
	DefaultBaseURL = "https://export.arxiv.org/api/query"
	// DefaultQuery spans broad subject areas when no topic is given.
	DefaultQuery = "cat:cs.* OR cat:physics.* OR cat:math.*"
	// DefaultRate is the minimum spacing between requests that arXiv asks for.
	DefaultRate = 3 * time.Second
	// DefaultRetries is the number of retries per page.
	DefaultRetries = 3

	maxPageSize    = 100
	oversample     = 2
	defaultBackoff = time.Second
	maxBackoff     = 30 * time.Second
	maxBodyBytes   = 32 << 20
)

// ErrInvalidCount is returned when the requested paper count is not positive.
var ErrInvalidCount = errors.New("paper count must be positive")

// Client queries arXiv and converts Atom entries into papers.
type Client struct {
	baseURL  string
	http     *http.Client
	parser   *gofeed.Parser
	limiter  *rate.Limiter
	retries  int
	backoff  time.Duration
	pageSize int
	logger   *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for masked failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRate sets the minimum interval between requests. Zero disables pacing.
func WithRate(every time.Duration) Option {
	return func(c *Client) { c.limiter = newLimiter(every) }
}

// WithRetries sets how many times a failed page is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithPageSize caps the number of results per request.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= maxPageSize {
			c.pageSize = n
		}
	}
}

// WithSeed makes sampling deterministic.
func WithSeed(seed int64) Option {
	return func(c *Client) { c.rnd = rand.New(rand.NewSource(seed)) }
}

// NewClient returns a Client with arXiv defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: 60 * time.Second},
		parser:   gofeed.NewParser(),
		limiter:  newLimiter(DefaultRate),
		retries:  DefaultRetries,
		backoff:  defaultBackoff,
		pageSize: maxPageSize,
		logger:   zap.NewNop(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Query returns the search query for a topic.
func Query(topic string) string {
	topic = strings.TrimSpace(strings.ReplaceAll(topic, `"`, ""))
	if topic == "" {
		return DefaultQuery
	}
	return fmt.Sprintf("all:%q", topic)
}

// Fetch returns up to count recent papers for topic. It over-fetches twice the
// count and samples down. Failing pages are retried, then logged and skipped,
// so fewer papers than requested may be returned. Only invalid arguments and
// context cancellation are reported as errors.
func (c *Client) Fetch(ctx context.Context, count int, topic string) ([]model.Paper, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	query := Query(topic)
	target := count * oversample
	papers := make([]model.Paper, 0, target)

	for start := 0; len(papers) < target; {
		size := min(c.pageSize, target-len(papers))
		feed, err := c.fetchPage(ctx, query, start, size)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch papers: %w", ctx.Err())
			}
			c.logger.Warn("arxiv page failed, keeping partial results",
				zap.Int("start", start), zap.Int("fetched", len(papers)), zap.Error(err))
			break
		}
		if len(feed.Items) == 0 {
			break
		}
		for _, item := range feed.Items {
			paper, ok := toPaper(item)
			if !ok {
				c.logger.Debug("skipping arxiv entry", zap.String("title", item.Title))
				continue
			}
			papers = append(papers, paper)
		}
		start += len(feed.Items)
	}
	if len(papers) > target {
		papers = papers[:target]
	}

	c.logger.Debug("arxiv fetch complete",
		zap.String("query", query), zap.Int("requested", count), zap.Int("fetched", len(papers)))
	return c.sample(papers, count), nil
}

func (c *Client) sample(papers []model.Paper, count int) []model.Paper {
	if len(papers) <= count {
		return papers
	}
	c.mu.Lock()
	c.rnd.Shuffle(len(papers), func(i, j int) {
		papers[i], papers[j] = papers[j], papers[i]
	})
	c.mu.Unlock()
	return papers[:count]
}

func (c *Client) pageURL(query string, start, size int) string {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(size))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	return c.baseURL + "?" + params.Encode()
}

// fetchPage requests one page, retrying transport errors, 429, 5xx and
// unparseable bodies with exponential backoff.
func (c *Client) fetchPage(ctx context.Context, query string, start, size int) (*gofeed.Feed, error) {
	target := c.pageURL(query, start, size)
	delay := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying arxiv page", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxBackoff)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		feed, retryable, err := c.get(ctx, target)
		if err == nil {
			return feed, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("all retries exhausted: %w", lastErr)
}

func (c *Client) get(ctx context.Context, target string) (*gofeed.Feed, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}
	feed, err := c.parser.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, false, nil
}

func toPaper(item *gofeed.Item) (model.Paper, bool) {
	if item == nil || isErrorEntry(item) {
		return model.Paper{}, false
	}
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published == nil {
		return model.Paper{}, false
	}
	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	return model.Paper{
		Title:      collapseSpace(item.Title),
		Abstract:   collapseSpace(item.Description),
		Authors:    authors,
		Published:  published.UTC(),
		URL:        pdfURL(item),
		Categories: append([]string(nil), item.Categories...),
	}, true
}

// isErrorEntry detects the single entry arXiv returns for a rejected query.
func isErrorEntry(item *gofeed.Item) bool {
	return item.Title == "Error" && strings.Contains(item.Link+item.GUID, "/api/errors")
}

// pdfURL prefers an explicit PDF link and otherwise rewrites the abs link.
func pdfURL(item *gofeed.Item) string {
	for _, l := range item.Links {
		if strings.Contains(l, "/pdf/") {
			return l
		}
	}
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	return strings.Replace(link, "/abs/", "/pdf/", 1)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
