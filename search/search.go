// Package search provides the web search collaborator backed by the
// DuckDuckGo Instant Answer API.
//
// Like the weather collaborator, upstream failures are folded into the
// structured result payload so the model receives data it can talk about
// rather than an opaque function failure.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tinyllm/tinyllm/function"
	"github.com/tinyllm/tinyllm/logging"
)

const (
	defaultBaseURL    = "https://api.duckduckgo.com/"
	userAgent         = "tinyllm/1.0"
	defaultMaxResults = 5
)

// Topic is one related topic or instant-answer result.
type Topic struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Result is the structured search outcome handed back to the model.
type Result struct {
	Query           string  `json:"query"`
	Abstract        string  `json:"abstract"`
	AbstractSource  string  `json:"abstract_source,omitempty"`
	AbstractURL     string  `json:"abstract_url,omitempty"`
	Answer          string  `json:"answer,omitempty"`
	Heading         string  `json:"heading,omitempty"`
	OfficialWebsite string  `json:"official_website,omitempty"`
	RelatedTopics   []Topic `json:"related_topics"`
	Results         []Topic `json:"results"`
	Summary         string  `json:"summary"`
}

// Client calls the instant answer API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     logging.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *Client) { s.httpClient = c }
}

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(u string) ClientOption {
	return func(s *Client) { s.baseURL = u }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) ClientOption {
	return func(s *Client) { s.logger = logger }
}

// NewClient returns a search client with the given per-call timeout.
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		logger:     logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// instantAnswer is the subset of the API response this client reads.
type instantAnswer struct {
	Abstract        string `json:"Abstract"`
	AbstractSource  string `json:"AbstractSource"`
	AbstractURL     string `json:"AbstractURL"`
	Answer          string `json:"Answer"`
	Heading         string `json:"Heading"`
	OfficialWebsite string `json:"OfficialWebsite"`
	RelatedTopics   []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
	Results []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"Results"`
}

// Search queries the instant answer API for query, returning at most
// maxResults related topics and results.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (*Result, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	q := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &Result{
		Query:           query,
		Abstract:        ia.Abstract,
		AbstractSource:  ia.AbstractSource,
		AbstractURL:     ia.AbstractURL,
		Answer:          ia.Answer,
		Heading:         ia.Heading,
		OfficialWebsite: ia.OfficialWebsite,
		RelatedTopics:   []Topic{},
		Results:         []Topic{},
	}

	for _, t := range ia.RelatedTopics {
		if len(result.RelatedTopics) >= maxResults {
			break
		}
		if t.Text == "" {
			continue
		}
		result.RelatedTopics = append(result.RelatedTopics, Topic{Text: t.Text, URL: t.FirstURL})
	}
	for _, r := range ia.Results {
		if len(result.Results) >= maxResults {
			break
		}
		result.Results = append(result.Results, Topic{Text: r.Text, URL: r.FirstURL})
	}

	result.Summary = summarize(result)
	c.logger.Info("search completed", "query", query, "topics", len(result.RelatedTopics))
	return result, nil
}

func summarize(r *Result) string {
	switch {
	case r.Abstract != "":
		var b strings.Builder
		fmt.Fprintf(&b, "Search results for '%s':\n\n%s\n\n", r.Query, r.Abstract)
		if r.AbstractSource != "" {
			fmt.Fprintf(&b, "Source: %s", r.AbstractSource)
			if r.AbstractURL != "" {
				fmt.Fprintf(&b, " (%s)", r.AbstractURL)
			}
			b.WriteString("\n\n")
		}
		if r.OfficialWebsite != "" {
			fmt.Fprintf(&b, "Official Website: %s\n\n", r.OfficialWebsite)
		}
		if len(r.RelatedTopics) > 0 {
			b.WriteString("Related Topics:\n")
			for i, t := range r.RelatedTopics {
				fmt.Fprintf(&b, "%d. %s\n", i+1, t.Text)
			}
		}
		return b.String()
	case r.Answer != "":
		return fmt.Sprintf("Answer for '%s': %s", r.Query, r.Answer)
	default:
		return fmt.Sprintf("No detailed information found for '%s'. Try rephrasing your search query.", r.Query)
	}
}

// Handler exposes the client as the search_web registry function.
func (c *Client) Handler() function.Definition {
	return function.Definition{
		Name:        "search_web",
		Description: "Search the web for current information using DuckDuckGo",
		Parameters: map[string]function.Parameter{
			"query": {
				Type:        "string",
				Description: "The search query",
				Required:    true,
			},
			"max_results": {
				Type:        "integer",
				Description: "Maximum number of related topics to return",
			},
		},
		Timeout: 15 * time.Second,
		Handler: function.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			maxResults := defaultMaxResults
			// JSON-decoded numbers arrive as float64.
			if f, ok := args["max_results"].(float64); ok {
				maxResults = int(f)
			} else if n, ok := args["max_results"].(int); ok {
				maxResults = n
			}

			result, err := c.Search(ctx, query, maxResults)
			if err != nil {
				c.logger.Error("search failed", "query", query, "error", err.Error())
				return map[string]any{"error": err.Error(), "query": query}, nil
			}
			return result, nil
		}),
	}
}
