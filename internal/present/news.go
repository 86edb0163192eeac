package present

import (
	"fmt"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// NewsDigest is one day's ranked news report.
type NewsDigest struct {
	// Date is the report date; empty uses today.
	Date      string
	ReportURL string
	// Total is the number of entries extracted, FocusCount how many of them
	// matched a keyword before truncation.
	Total      int
	FocusCount int
	Focus      []models.NewsEntry
	Rest       []models.NewsEntry
}

// DailyTitle is the title of every message for date.
func DailyTitle(date string) string {
	return date + " 的奏折"
}

// News renders the summary message followed by one message per focus entry.
func (p *Presenter) News(d NewsDigest) (models.Message, []models.Message) {
	date := d.Date
	if date == "" {
		date = p.Today()
	}
	title := DailyTitle(date)

	lines := []string{fmt.Sprintf("重点命中：%d / %d", d.FocusCount, d.Total)}
	if len(d.Focus) > 0 {
		lines = append(lines, fmt.Sprintf("重点已分条推送：%d 条", len(d.Focus)))
	}
	if len(d.Rest) > 0 {
		lines = append(lines, "", "其他：")
		for i, it := range d.Rest {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, it.Text))
		}
	}

	summary := p.fit(models.Message{
		Title:    title,
		Subtitle: fmt.Sprintf("AI 技术早报 · 重点 %d / %d", d.FocusCount, d.Total),
		Body:     strings.Join(lines, "\n"),
		OpenURL:  d.ReportURL,
	})

	followups := make([]models.Message, 0, len(d.Focus))
	for i, it := range d.Focus {
		link := it.URL
		if link == "" {
			link = d.ReportURL
		}
		followups = append(followups, p.fit(models.Message{
			Title:    title,
			Subtitle: fmt.Sprintf("AI 早报重点 %d / %d", i+1, len(d.Focus)),
			Body:     it.Text,
			OpenURL:  link,
		}))
	}
	return summary, followups
}
