package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/pkg/utils/httpclient"
	"github.com/kart-io/sentinel-search/pkg/utils/json"
)

// BaseURLs 覆盖各供应商的默认地址，测试时指向本地服务。
type BaseURLs map[string]string

// NewProviders 创建全部内置供应商。
func NewProviders(client *httpclient.Client, bases BaseURLs) []Provider {
	return []Provider{
		NewWikipedia(client, bases[ProviderWikipedia]),
		NewDuckDuckGo(client, bases[ProviderDuckDuckGo]),
		NewGoogle(client, bases[ProviderGoogle]),
		NewBing(client, bases[ProviderBing]),
		NewBrave(client, bases[ProviderBrave]),
	}
}

// Wikipedia 使用 MediaWiki 搜索 API。
type Wikipedia struct{ scraper }

// NewWikipedia 创建 Wikipedia 供应商。
func NewWikipedia(client *httpclient.Client, baseURL string) *Wikipedia {
	return &Wikipedia{newScraper(ProviderWikipedia, baseURL, "https://en.wikipedia.org", client)}
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search 执行搜索。
func (w *Wikipedia) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	resp, err := w.fetch(ctx, "/w/api.php", url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(maxResults)},
		"format":   {"json"},
		"utf8":     {"1"},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body wikiSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("wikipedia: failed to decode response: %w", err)
	}

	c := newCollector(w.name, maxResults)
	for _, item := range body.Query.Search {
		c.add(item.Title, w.articleURL(item.Title), stripTags(item.Snippet))
	}
	return c.results, nil
}

func (w *Wikipedia) articleURL(title string) string {
	return w.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// stripTags 去除摘要中的高亮标签。
func stripTags(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return fragment
	}
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			continue
		}
		parts = append(parts, textOf(n))
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// DuckDuckGo 抓取 HTML 版本的结果页。
type DuckDuckGo struct{ scraper }

// NewDuckDuckGo 创建 DuckDuckGo 供应商。
func NewDuckDuckGo(client *httpclient.Client, baseURL string) *DuckDuckGo {
	return &DuckDuckGo{newScraper(ProviderDuckDuckGo, baseURL, "https://html.duckduckgo.com", client)}
}

// Search 执行搜索。
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	doc, err := d.fetchHTML(ctx, "/html/", url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}

	c := newCollector(d.name, maxResults)
	for _, r := range findAll(doc, byClass("result")) {
		if hasClass(r, "result--ad") {
			continue
		}
		a := findFirst(r, byClass("result__a"))
		if a == nil {
			continue
		}
		c.add(textOf(a), unwrapDuckDuckGo(attr(a, "href")), textOf(findFirst(r, byClass("result__snippet"))))
	}
	return c.results, nil
}

// unwrapDuckDuckGo 解析 /l/?uddg= 跳转链接。
func unwrapDuckDuckGo(href string) string {
	href = absoluteURL(href)
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if !isHTTP(href) {
		return ""
	}
	return href
}

// Google 抓取结果页，链接可能被包装为 /url?q=。
type Google struct{ scraper }

// NewGoogle 创建 Google 供应商。
func NewGoogle(client *httpclient.Client, baseURL string) *Google {
	return &Google{newScraper(ProviderGoogle, baseURL, "https://www.google.com", client)}
}

// Search 执行搜索。
func (g *Google) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	doc, err := g.fetchHTML(ctx, "/search", url.Values{
		"q":   {query},
		"num": {strconv.Itoa(maxResults + 2)},
		"hl":  {"en"},
	})
	if err != nil {
		return nil, err
	}

	c := newCollector(g.name, maxResults)
	for _, a := range findAll(doc, byTag(atom.A)) {
		h3 := findFirst(a, byTag(atom.H3))
		if h3 == nil {
			continue
		}
		link := unwrapGoogle(attr(a, "href"))
		if link == "" {
			continue
		}
		c.add(textOf(h3), link, googleSnippet(a))
	}
	return c.results, nil
}

func unwrapGoogle(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
	}
	if !isHTTP(href) {
		return ""
	}
	u, _ := url.Parse(href)
	if strings.HasSuffix(u.Hostname(), "google.com") {
		return ""
	}
	return href
}

// googleSnippet 在结果容器内查找摘要块。
func googleSnippet(a *html.Node) string {
	for n, depth := a.Parent, 0; n != nil && depth < 6; n, depth = n.Parent, depth+1 {
		if n.Type != html.ElementNode || !hasClass(n, "g") {
			continue
		}
		for _, class := range []string{"VwiC3b", "st", "s"} {
			if s := findFirst(n, byClass(class)); s != nil {
				return textOf(s)
			}
		}
		return ""
	}
	return ""
}

// Bing 抓取结果页。
type Bing struct{ scraper }

// NewBing 创建 Bing 供应商。
func NewBing(client *httpclient.Client, baseURL string) *Bing {
	return &Bing{newScraper(ProviderBing, baseURL, "https://www.bing.com", client)}
}

// Search 执行搜索。
func (b *Bing) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	doc, err := b.fetchHTML(ctx, "/search", url.Values{"q": {query}, "count": {strconv.Itoa(maxResults)}})
	if err != nil {
		return nil, err
	}

	c := newCollector(b.name, maxResults)
	for _, li := range findAll(doc, byTagClass(atom.Li, "b_algo")) {
		h2 := findFirst(li, byTag(atom.H2))
		if h2 == nil {
			continue
		}
		a := findFirst(h2, byTag(atom.A))
		if a == nil {
			continue
		}
		var snippet string
		if caption := findFirst(li, byClass("b_caption")); caption != nil {
			snippet = textOf(findFirst(caption, byTag(atom.P)))
		}
		if link := absoluteURL(attr(a, "href")); isHTTP(link) {
			c.add(textOf(a), link, snippet)
		}
	}
	return c.results, nil
}

// Brave 抓取结果页。
type Brave struct{ scraper }

// NewBrave 创建 Brave 供应商。
func NewBrave(client *httpclient.Client, baseURL string) *Brave {
	return &Brave{newScraper(ProviderBrave, baseURL, "https://search.brave.com", client)}
}

// Search 执行搜索。
func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	doc, err := b.fetchHTML(ctx, "/search", url.Values{"q": {query}, "source": {"web"}})
	if err != nil {
		return nil, err
	}

	c := newCollector(b.name, maxResults)
	for _, s := range findAll(doc, byClass("snippet")) {
		title := findFirst(s, byClass("snippet-title"))
		if title == nil {
			continue
		}
		link := ""
		if u := findFirst(s, byClass("snippet-url")); u != nil {
			link = attr(u, "href")
		}
		if link == "" {
			if a := findFirst(s, byTag(atom.A)); a != nil {
				link = attr(a, "href")
			}
		}
		if link = absoluteURL(link); isHTTP(link) {
			c.add(textOf(title), link, textOf(findFirst(s, byClass("snippet-description"))))
		}
	}
	return c.results, nil
}
