package research

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/html"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

const maxContentChars = 8000

var whitespaceRE = regexp.MustCompile(`\s+`)

// Extractor fetches source pages and reduces them to plain text. Fetched
// text is cached by URL so concurrent sessions researching overlapping
// topics do not refetch the same pages.
type Extractor struct {
	Client  *http.Client
	Timeout time.Duration
	cache   *cache.Cache
}

func NewExtractor() *Extractor {
	return &Extractor{
		Client: &http.Client{
			Timeout: 10 * time.Second,
			// follow redirects (default policy)
		},
		Timeout: 8 * time.Second,
		cache:   cache.New(1*time.Hour, 10*time.Minute),
	}
}

// EnrichSources fetches every source's page and attaches the extracted
// text. Fetch failures leave Content empty rather than failing the stage.
func (e *Extractor) EnrichSources(ctx context.Context, sources []pipeline.Source) []pipeline.Source {
	enriched := make([]pipeline.Source, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			s.Content = e.extract(ctx, s.URL)
		}
		enriched = append(enriched, s)
	}
	return enriched
}

func (e *Extractor) extract(ctx context.Context, url string) string {
	if cached, found := e.cache.Get(url); found {
		return cached.(string)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.Client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	text := HTMLToText(resp.Body, maxContentChars)
	e.cache.Set(url, text, cache.DefaultExpiration)
	return text
}

// HTMLToText extracts the visible text of an HTML document, dropping
// script and style subtrees and collapsing whitespace, capped at maxChars.
func HTMLToText(r io.Reader, maxChars int) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.TrimSpace(whitespaceRE.ReplaceAllString(sb.String(), " "))
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}
