package docfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	maxContentSize = 4 << 20
	fetchTimeout   = 20 * time.Second
	userAgent      = "arxiv-relay/1.0"
)

// Document is a fetched paper page reduced to markdown.
type Document struct {
	ID       string
	Title    string
	Markdown string
}

// Fetcher retrieves arXiv abstract pages and converts them to markdown.
type Fetcher struct {
	client    *http.Client
	converter *md.Converter
	budget    int
}

// NewFetcher creates a Fetcher whose output is clamped to budget characters.
func NewFetcher(budget int) *Fetcher {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Fetcher{
		client:    &http.Client{Timeout: fetchTimeout},
		converter: converter,
		budget:    budget,
	}
}

// Fetch downloads the abstract page for id and returns its readable content
// as markdown. Failures here never abort the chat; callers degrade to an
// unaugmented conversation.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*Document, error) {
	pageURL := AbsURL(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	doc := &Document{ID: id}
	doc.Title, doc.Markdown = f.extract(body, pageURL)
	if doc.Markdown == "" {
		return nil, fmt.Errorf("no readable content at %s", pageURL)
	}
	return doc, nil
}

// extract runs readability article extraction and falls back to converting
// the whole page when the extractor finds nothing.
func (f *Fetcher) extract(body []byte, pageURL string) (title, markdown string) {
	parsed, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	content := string(body)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		title = article.Title
		content = article.Content
	}
	if title == "" {
		title = htmlTitle(body)
	}

	converted, err := f.converter.ConvertString(content)
	if err != nil {
		return title, ""
	}
	return title, f.clamp(cleanMarkdown(converted))
}

func (f *Fetcher) clamp(s string) string {
	if f.budget <= 0 || len(s) <= f.budget {
		return s
	}
	// Cut on a line boundary so the model never sees a torn sentence mid-table.
	cut := s[:f.budget]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n\n[content truncated]"
}

// htmlTitle pulls the <title> element out of raw HTML, for pages where the
// readability pass finds content but no heading.
func htmlTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	for strings.Contains(content, "\n\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n\n", "\n\n\n")
	}
	return strings.TrimSpace(content)
}
