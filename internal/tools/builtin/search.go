package builtin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"conductor/internal/tools"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher performs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// HTTPSearcher queries a JSON search endpoint (SearXNG-compatible:
// GET ?q=..&format=json returning {"results":[{title,url,content|snippet}]}).
type HTTPSearcher struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

// NewHTTPSearcher creates a searcher for endpoint.
func NewHTTPSearcher(endpoint, apiKey string, timeout time.Duration) *HTTPSearcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &HTTPSearcher{client: client, endpoint: endpoint, apiKey: apiKey}
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search implements Searcher.
func (s *HTTPSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if s.endpoint == "" {
		return nil, fmt.Errorf("no search endpoint configured")
	}

	req := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "json",
			"count":  strconv.Itoa(maxResults),
		}).
		SetResult(&searchResponse{})
	if s.apiKey != "" {
		req.SetAuthToken(s.apiKey)
	}

	resp, err := req.Get(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	body, ok := resp.Result().(*searchResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected search response")
	}
	out := make([]SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		if len(out) >= maxResults {
			break
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return out, nil
}

// WebSearchArgs are the web_search parameters.
type WebSearchArgs struct {
	Query      string `json:"query" jsonschema:"description=Search query,required"`
	MaxResults int    `json:"max_results" jsonschema:"description=Number of results,minimum=1,maximum=20,default=5"`
}

// WebSearchTool searches the web. Listed only when search is enabled.
type WebSearchTool struct {
	tools.BaseTool
	searcher Searcher
}

// NewWebSearchTool creates web_search.
func NewWebSearchTool(searcher Searcher) *WebSearchTool {
	return &WebSearchTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameWebSearch,
			Description: "Search the web for current information (prices, news, recent events, facts about people and organisations).",
			Kind:        tools.KindNetwork,
			Feature:     tools.FeatureSearch,
			Params:      tools.BuildParams(WebSearchArgs{}),
		}},
		searcher: searcher,
	}
}

// Execute implements tools.Tool.
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	query := tools.StringArg(args, "query")
	max := tools.IntArg(args, "max_results", 5)

	results, err := t.searcher.Search(ctx, query, max)
	if err != nil {
		return tools.ToolResult{}, err
	}
	if len(results) == 0 {
		return tools.NewSuccessResult(fmt.Sprintf("No results for %q.", query)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[EXTERNAL CONTENT: web search for %q]\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return tools.NewResultWithMetadata(strings.TrimRight(b.String(), "\n"), map[string]any{"results": len(results)}), nil
}
