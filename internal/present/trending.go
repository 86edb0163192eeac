package present

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/coerce"
	"github.com/hoanghai1803/pushkit/internal/models"
)

// DefaultChunkSize is how many repositories share one follow-up message.
const DefaultChunkSize = 4

// TrendingDigest is one scrape of the trending page after ranking.
type TrendingDigest struct {
	Since    string
	Lang     string
	PageURL  string
	MinStars int
	Keywords int
	// Scraped counts every repository on the page, Matched those passing the
	// star and keyword filters.
	Scraped int
	Matched int
	Fresh   []models.RepoEntry
	// ChunkSize is clamped to 1..8.
	ChunkSize int
}

// TrendingTitle is the title shared by every message of one digest.
func TrendingTitle(since string) string {
	return "GitHub 热点周报（" + since + "）"
}

// Trending renders the summary followed by chunked repository lists. When
// nothing is fresh a single notice is returned.
func (p *Presenter) Trending(d TrendingDigest) []models.Message {
	title := TrendingTitle(d.Since)
	if len(d.Fresh) == 0 {
		return []models.Message{{
			Title:    title,
			Subtitle: "暂无新项目（或均已推送过）",
			Body:     d.PageURL,
			OpenURL:  d.PageURL,
		}}
	}

	sub := fmt.Sprintf("抓取 %d | 过滤后 %d | 新推送 %d", d.Scraped, d.Matched, len(d.Fresh))
	if d.Lang != "" {
		sub += " | lang " + d.Lang
	}
	if d.MinStars > 0 {
		sub += " | minStars " + strconv.Itoa(d.MinStars)
	}
	if d.Keywords > 0 {
		sub += " | kw " + strconv.Itoa(d.Keywords)
	}
	msgs := []models.Message{{
		Title:    title,
		Subtitle: sub,
		Body:     "榜单页：\n" + d.PageURL,
		OpenURL:  d.PageURL,
	}}

	size := d.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	size = coerce.Clamp(size, 1, 8)
	parts := (len(d.Fresh) + size - 1) / size
	for start, part := 0, 1; start < len(d.Fresh); start, part = start+size, part+1 {
		end := min(start+size, len(d.Fresh))
		chunk := d.Fresh[start:end]
		link := chunk[0].URL
		msgs = append(msgs, p.fit(models.Message{
			Title:    fmt.Sprintf("%s (%d/%d)", title, part, parts),
			Subtitle: fmt.Sprintf("Top %d-%d", start+1, end),
			Body:     repoLines(chunk, start),
			OpenURL:  link,
		}))
	}
	return msgs
}

func repoLines(chunk []models.RepoEntry, offset int) string {
	var b strings.Builder
	for i, r := range chunk {
		fmt.Fprintf(&b, "%d. %s", offset+i+1, r.Name)
		if r.Growth != "" {
			b.WriteString("（" + r.Growth + "）")
		}
		b.WriteByte('\n')
		if r.Description != "" {
			b.WriteString("   " + r.Description + "\n")
		}
		b.WriteString("   " + r.URL + "\n\n")
	}
	return strings.TrimSpace(b.String())
}
