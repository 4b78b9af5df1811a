package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/pkg/utils/httpclient"
)

// 供应商名称
const (
	ProviderWikipedia  = "wikipedia"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderGoogle     = "google"
	ProviderBing       = "bing"
	ProviderBrave      = "brave"
)

// Provider 搜索供应商。单个供应商失败不影响其他供应商。
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// maxPageBytes 单个页面读取上限。
const maxPageBytes = 4 << 20

// scraper 抓取 HTML 搜索结果页的公共部分。
type scraper struct {
	name    string
	baseURL string
	client  *httpclient.Client
}

func newScraper(name, baseURL, defaultURL string, client *httpclient.Client) scraper {
	if baseURL == "" {
		baseURL = defaultURL
	}
	return scraper{name: name, baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (s scraper) Name() string { return s.name }

func (s scraper) fetch(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	resp, err := s.client.Get(ctx, s.baseURL+path+"?"+params.Encode(), map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/json",
		"Accept-Language": "en-US,en;q=0.9",
	})
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", s.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}
	return resp, nil
}

func (s scraper) fetchHTML(ctx context.Context, path string, params url.Values) (*html.Node, error) {
	resp, err := s.fetch(ctx, path, params)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := parseHTML(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse html: %w", s.name, err)
	}
	return doc, nil
}

// collector 按 URL 去重并限制结果数。
type collector struct {
	name    string
	limit   int
	seen    map[string]struct{}
	results []model.SearchResult
}

func newCollector(name string, limit int) *collector {
	return &collector{name: name, limit: limit, seen: make(map[string]struct{})}
}

func (c *collector) add(title, link, snippet string) {
	if link == "" || c.full() {
		return
	}
	if _, ok := c.seen[link]; ok {
		return
	}
	c.seen[link] = struct{}{}
	c.results = append(c.results, model.SearchResult{
		Title:    strings.TrimSpace(title),
		URL:      link,
		Snippet:  strings.TrimSpace(snippet),
		Provider: c.name,
	})
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.results) >= c.limit
}

// absoluteURL 补全协议相对地址。
func absoluteURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func isHTTP(link string) bool {
	u, err := url.Parse(link)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
