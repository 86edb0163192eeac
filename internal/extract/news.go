package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// Report identifies the daily news page a listing points to.
type Report struct {
	Date  string // YYYY-MM-DD, empty when unknown
	Label string // YYYY.MM.DD
	URL   string
	Base  string
}

var reportDate = regexp.MustCompile(`/news/(\d{4}-\d{2}-\d{2})`)

// ExtractReport finds the report date in text, or failing that in the
// fetched URL, and builds the canonical report URL. Sources on the .cn
// mirror keep the .cn host.
func ExtractReport(text, fetchedURL string) Report {
	base := "https://www.aicpb.com"
	if strings.Contains(fetchedURL, "aicpb.cn") || strings.Contains(text, "aicpb.cn") {
		base = "https://www.aicpb.cn"
	}

	m := reportDate.FindStringSubmatch(text)
	if m == nil {
		m = reportDate.FindStringSubmatch(fetchedURL)
	}
	if m == nil {
		return Report{URL: fetchedURL, Base: base}
	}
	return Report{
		Date:  m[1],
		Label: strings.ReplaceAll(m[1], "-", "."),
		URL:   base + "/news/" + m[1],
		Base:  base,
	}
}

// NewsStrategies returns the news extraction cascade in priority order.
func NewsStrategies() []Strategy[models.NewsEntry] {
	return []Strategy[models.NewsEntry]{
		{Name: "markdown", Extract: markdownNumbered},
		{Name: "anchor", Extract: anchorOrdinal},
		{Name: "feed", Extract: feedItems},
		{Name: "readability", Extract: readableLines},
	}
}

// News extracts the de-duplicated news entries of src and reports which
// strategy produced them.
func News(src Source) ([]models.NewsEntry, string) {
	items, strategy := Cascade(src, NewsStrategies()...)
	return Dedup(items), strategy
}

func newsEntry(index, text, link string) (models.NewsEntry, bool) {
	text = collapse(text)
	if text == "" || tooShort(text) {
		return models.NewsEntry{}, false
	}
	n, _ := strconv.Atoi(index)
	return models.NewsEntry{
		Entry: models.Entry{Name: text, Key: strings.ToLower(text), URL: link},
		Index: n,
		Text:  text,
	}, true
}

var markdownLink = regexp.MustCompile(`\[(\d+)\s*\.\s*([\s\S]*?)\]\((https?://[^)]+)\)`)

// markdownNumbered matches reader-proxy output such as "[1 . Title](https://...)".
func markdownNumbered(src Source) ([]models.NewsEntry, error) {
	var out []models.NewsEntry
	for _, m := range markdownLink.FindAllStringSubmatch(src.Text, -1) {
		if e, ok := newsEntry(m[1], m[2], absolutize(m[3], src.BaseURL)); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

var ordinalText = regexp.MustCompile(`(?s)^(\d{1,3})\s*\.\s*(.+)$`)

// anchorOrdinal walks the HTML tree for links whose text starts with an
// ordinal, as in <a href="/news/x">1 . Title</a>.
func anchorOrdinal(src Source) ([]models.NewsEntry, error) {
	if !strings.Contains(src.Text, "<") {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(src.Text))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var out []models.NewsEntry
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := getAttr(n, "href")
			if m := ordinalText.FindStringSubmatch(strings.TrimSpace(textContent(n))); href != "" && m != nil {
				if e, ok := newsEntry(m[1], m[2], absolutize(href, src.BaseURL)); ok {
					out = append(out, e)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// feedItems reads RSS, Atom and JSON feeds; items are numbered in feed order.
func feedItems(src Source) ([]models.NewsEntry, error) {
	trimmed := strings.TrimSpace(src.Text)
	if !strings.HasPrefix(trimmed, "<?xml") && !strings.HasPrefix(trimmed, "<rss") &&
		!strings.HasPrefix(trimmed, "<feed") && !strings.HasPrefix(trimmed, "{") {
		return nil, nil
	}
	feed, err := gofeed.NewParser().ParseString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var out []models.NewsEntry
	for i, item := range feed.Items {
		if e, ok := newsEntry(strconv.Itoa(i+1), item.Title, absolutize(item.Link, src.BaseURL)); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

var numberedLine = regexp.MustCompile(`^\s*(\d{1,3})\s*[.、．]\s*(.+?)\s*$`)

// readableLines is the last resort: it reduces the page to readable text and
// picks numbered lines. Entries link to the page itself.
func readableLines(src Source) ([]models.NewsEntry, error) {
	if !strings.Contains(src.Text, "<") {
		return nil, nil
	}
	base, err := url.Parse(src.BaseURL)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "https", Host: "localhost"}
	}
	article, err := readability.FromReader(strings.NewReader(src.Text), base)
	if err != nil {
		return nil, fmt.Errorf("readability extraction: %w", err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return nil, errors.New("no readable text")
	}

	var out []models.NewsEntry
	for _, line := range strings.Split(article.TextContent, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			if e, ok := newsEntry(m[1], m[2], src.BaseURL); ok {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// getAttr returns the value of the named attribute on an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent returns the concatenated text of a node and its children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
