package present

import (
	"fmt"
	"math"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/market"
	"github.com/hoanghai1803/pushkit/internal/models"
)

// MaxPerGroup bounds how many lines one market group shows.
const MaxPerGroup = 10

// QuoteBoard is everything fetched for one push slot.
type QuoteBoard struct {
	Title  string
	Slot   market.Slot
	Quotes []models.QuoteEntry
	Funds  []models.FundEntry
}

// QuotesConfigHint is sent when no security codes are configured.
func QuotesConfigHint(title string) models.Message {
	return models.Message{
		Title:    title,
		Subtitle: "配置提示",
		Body: strings.Join([]string{
			"请配置股票/指数/基金代码（英文逗号分隔）：",
			"A股/指数：000001,399001,600519,159915",
			"港股：00700,09988",
			"美股：AAPL,TSLA（可带后缀：TSLA.OQ / BABA.N）",
			"场外基金：012414（或 fund:012414）",
			"",
			"也可以在参数里传入：",
			"stockCodes=000001,399001,012414,AAPL&node=节点选择",
		}, "\n"),
	}
}

type quoteGroup struct {
	market models.Market
	label  string
}

var quoteGroups = []quoteGroup{
	{models.MarketCN, "A股/指数"},
	{models.MarketHK, "港股"},
	{models.MarketUS, "美股"},
	{models.MarketFund, "场外基金"},
}

// Quotes renders the board as one message grouped by market. Groups the slot
// does not include are skipped. The boolean is false when there is nothing
// to show, in which case the message says so.
func (p *Presenter) Quotes(b QuoteBoard) (models.Message, bool) {
	lines := make(map[models.Market][]string)
	for _, q := range b.Quotes {
		if b.Slot.Includes(q.Market) {
			lines[q.Market] = append(lines[q.Market], QuoteLine(q))
		}
	}
	if b.Slot.Includes(models.MarketFund) {
		for _, f := range b.Funds {
			lines[models.MarketFund] = append(lines[models.MarketFund], FundLine(f))
		}
	}

	var counts []string
	for _, g := range quoteGroups {
		if n := len(lines[g.market]); n > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", g.label, n))
		}
	}
	if len(counts) == 0 {
		sub := b.Slot.Label
		if sub == "" {
			sub = "无数据"
		}
		return models.Message{
			Title:    b.Title,
			Subtitle: sub,
			Body:     "本次未获取到行情数据，请检查网络/节点或代码是否有效。",
		}, false
	}

	out := []string{"共：" + strings.Join(counts, " | ")}
	for _, g := range quoteGroups {
		group := lines[g.market]
		if len(group) == 0 {
			continue
		}
		out = append(out, "【"+g.label+"】")
		out = append(out, group[:min(len(group), MaxPerGroup)]...)
		if len(group) > MaxPerGroup {
			out = append(out, fmt.Sprintf("…共%d个，仅显示前%d个", len(group), MaxPerGroup))
		}
		out = append(out, "")
	}

	subtitle := "行情"
	if b.Slot.Label != "" {
		subtitle = b.Slot.Label + " · " + b.Slot.Key
	}
	return p.fit(models.Message{
		Title:    b.Title,
		Subtitle: subtitle,
		Body:     strings.Join(out, "\n"),
	}), true
}

// QuoteLine formats one quote, e.g. "贵州茅台(600519) 1700.00 · ↑ +¥17.00 (+1.01%)".
func QuoteLine(q models.QuoteEntry) string {
	price := formatPrice(q.Price, q.Currency)
	if q.Currency == models.Point {
		price += " 点"
	}
	change := fmt.Sprintf("%s %s (%s)", trend(q.ChangePct), formatSigned(q.Change, q.Currency), formatPct(q.ChangePct))
	switch q.Basis {
	case models.BasisOpen:
		change += " · 昨收缺失"
	case models.BasisNone:
		if q.Note == "" {
			change += " · 无参考价"
		}
	}
	if q.Note != "" {
		change += " · " + q.Note
	}

	code := strings.ToUpper(q.Symbol)
	if code != "" {
		return fmt.Sprintf("%s(%s) %s · %s", q.Name, code, price, change)
	}
	return fmt.Sprintf("%s %s · %s", q.Name, price, change)
}

// FundLine formats one fund valuation estimate.
func FundLine(f models.FundEntry) string {
	name := f.Name
	if name == "" {
		name = "基金"
	}
	return fmt.Sprintf("%s(%s) 估值 %.4f · %s %s", name, f.Code, f.Estimate, trend(f.EstimatePct), formatPct(f.EstimatePct))
}

func trend(pct float64) string {
	switch {
	case math.IsNaN(pct):
		return "?"
	case pct > 0:
		return "↑"
	case pct < 0:
		return "↓"
	}
	return "-"
}

func formatPct(p float64) string {
	if math.IsNaN(p) {
		return "--"
	}
	if p > 0 {
		return fmt.Sprintf("+%.2f%%", p)
	}
	return fmt.Sprintf("%.2f%%", p)
}

func formatPrice(v float64, c models.Currency) string {
	if c != models.Point && math.Abs(v) < 1 {
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func currencySymbol(c models.Currency) string {
	switch c {
	case models.USD:
		return "$"
	case models.HKD:
		return "HK$"
	case models.Point:
		return ""
	}
	return "¥"
}

func formatSigned(v float64, c models.Currency) string {
	sign := ""
	switch {
	case v > 0:
		sign = "+"
	case v < 0:
		sign = "-"
	}
	return fmt.Sprintf("%s%s%.2f", sign, currencySymbol(c), math.Abs(v))
}
