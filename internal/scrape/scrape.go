// Package scrape finds articles on a listing page whose preview mentions
// any of a set of keywords.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultKeywords are matched when no keywords are configured.
var DefaultKeywords = []string{"дизайн", "фото", "web", "python"}

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// Class names of the listing markup.
const (
	ClassArticle = "tm-articles-list__item"
	ClassDate    = "tm-article-snippet__datetime-published"
	ClassTitle   = "tm-article-snippet__title-link"
)

// Article is one matching entry of a listing page.
type Article struct {
	Date  string
	Title string
	Link  string
}

// String formats the article as "<date> – <title> – <link>".
func (a Article) String() string {
	return fmt.Sprintf("%s – %s – %s", a.Date, a.Title, a.Link)
}

// Scraper fetches listing pages and filters their articles.
type Scraper struct {
	client    *http.Client
	keywords  []string
	userAgent string
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithKeywords replaces the keyword set.
func WithKeywords(keywords ...string) Option {
	return func(s *Scraper) { s.keywords = keywords }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) { s.userAgent = ua }
}

// WithLogger sets the logger for skipped articles and bad responses.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// New creates a Scraper with DefaultKeywords and http.DefaultClient.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:    http.DefaultClient,
		keywords:  DefaultKeywords,
		userAgent: DefaultUserAgent,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindArticles fetches url and returns the matching articles formatted
// with Article.String. A non-200 response yields an empty list.
func (s *Scraper) FindArticles(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("listing page not fetched", "url", url, "status", resp.StatusCode)
		return []string{}, nil
	}

	articles, err := s.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.String()
	}
	return out, nil
}

// Parse returns the articles of a listing page that mention a keyword.
// Matching articles missing a date, title or link are skipped.
func (s *Scraper) Parse(r io.Reader) ([]Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	keywords := make([]string, len(s.keywords))
	for i, k := range s.keywords {
		keywords[i] = fold(k)
	}

	articles := []Article{}
	for _, node := range findAll(doc, atom.Article, ClassArticle) {
		if !containsAny(fold(textOf(node)), keywords) {
			continue
		}

		dateNode := findFirst(node, atom.Time, ClassDate)
		titleNode := findFirst(node, atom.A, ClassTitle)
		if dateNode == nil || titleNode == nil {
			s.logger.Warn("article skipped: missing date or title")
			continue
		}
		link, ok := attr(titleNode, "href")
		if !ok {
			s.logger.Warn("article skipped: missing link")
			continue
		}
		date, _ := attr(dateNode, "title")

		articles = append(articles, Article{
			Date:  date,
			Title: textOf(titleNode),
			Link:  link,
		})
	}
	return articles, nil
}

// fold normalizes s for caseless matching.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(root *html.Node, tag atom.Atom, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == tag && hasClass(n, class) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, tag atom.Atom, class string) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == tag && hasClass(c, class) {
			return c
		}
		if n := findFirst(c, tag, class); n != nil {
			return n
		}
	}
	return nil
}

// textOf concatenates the text nodes under n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
