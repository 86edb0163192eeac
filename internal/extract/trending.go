package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hoanghai1803/pushkit/internal/coerce"
	"github.com/hoanghai1803/pushkit/internal/models"
)

var (
	firstNumber = regexp.MustCompile(`[\d,]+`)
	starGrowth  = regexp.MustCompile(`(?i)([\d,]+)\s+stars\s+(today|this\s+week|this\s+month)`)
)

// Trending parses a GitHub trending page. Each <article> block is one
// repository; blocks without a repository link are skipped. Results are
// de-duplicated by lower-cased "owner/repo".
func Trending(src Source) ([]models.RepoEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src.Text))
	if err != nil {
		return nil, fmt.Errorf("parsing trending page: %w", err)
	}

	base := strings.TrimRight(src.BaseURL, "/")
	if base == "" {
		base = "https://github.com"
	}

	var out []models.RepoEntry
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("h2 a[href]").First().Attr("href")
		if !ok {
			return
		}
		full := strings.Join(strings.Fields(strings.Trim(href, "/")), "")
		if full == "" {
			return
		}

		repo := models.RepoEntry{
			Entry: models.Entry{
				Name: full,
				Key:  strings.ToLower(full),
				URL:  base + "/" + full,
			},
			Description: collapse(s.Find("p").First().Text()),
			Language:    strings.TrimSpace(s.Find(`[itemprop="programmingLanguage"]`).First().Text()),
		}

		if star := s.Find(`a[href$="/stargazers"]`).First(); star.Length() > 0 {
			if n := firstNumber.FindString(collapse(star.Text())); n != "" {
				repo.Stars = coerce.Int(n, 0).Value
			}
		}
		if m := starGrowth.FindStringSubmatch(collapse(s.Text())); m != nil {
			repo.Growth = m[1] + " stars " + collapse(strings.ToLower(m[2]))
		}

		out = append(out, repo)
	})

	return Dedup(out), nil
}

// TrendingURL builds the trending page URL for a period and optional
// language path.
func TrendingURL(since, lang string) string {
	u := "https://github.com/trending"
	if lang = strings.TrimSpace(lang); lang != "" {
		u += "/" + url.PathEscape(lang)
	}
	return u + "?since=" + url.PathEscape(since)
}
