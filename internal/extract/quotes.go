package extract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/coerce"
	"github.com/hoanghai1803/pushkit/internal/market"
	"github.com/hoanghai1803/pushkit/internal/models"
)

// SimpleRowNote annotates US quotes that came from the reduced row format,
// which carries no opening price.
const SimpleRowNote = "未获取到开盘价，以下为较昨收涨跌"

var (
	tencentLine = regexp.MustCompile(`(?i)v_([^=]+)=["']([^"']*)["']`)
	simpleUS    = regexp.MustCompile(`(?i)^s_us`)
	exchange    = regexp.MustCompile(`(?i)^(sh|sz|bj|hk|us)`)
)

var indexNames = map[string]string{
	"sh000001": "上证指数",
	"sz399001": "深证成指",
	"sz399006": "创业板指",
	"sh000300": "沪深300",
	"sz399905": "中证500",
}

// Tencent parses a qt.gtimg.cn batch response: one `v_<code>="a~b~c"` line
// per code, fields 1..5 being name, code, price, previous close and open.
// Reduced "s_us" rows (fields: name, code, price, change, change%) are only
// kept when no full row for the same symbol exists. Rows with no price are
// dropped. The result is stably sorted by market. The endpoint answers in
// GBK; a body that is not valid UTF-8 is decoded first.
func Tencent(body string) []models.QuoteEntry {
	body = toUTF8(body)
	var order []string
	rows := make(map[string]models.QuoteEntry)

	for _, line := range strings.Split(body, "\n") {
		m := tencentLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		code, fields := strings.TrimSpace(m[1]), strings.Split(strings.TrimSpace(m[2]), "~")
		if len(fields) < 6 {
			continue
		}

		var (
			q  models.QuoteEntry
			ok bool
		)
		simple := simpleUS.MatchString(code)
		if simple {
			q, ok = tencentSimpleRow(code, fields)
		} else {
			q, ok = tencentFullRow(code, fields)
		}
		if !ok {
			continue
		}

		key := q.Key
		if _, exists := rows[key]; !exists {
			order = append(order, key)
		} else if simple {
			continue
		}
		rows[key] = q
	}

	out := make([]models.QuoteEntry, 0, len(order))
	for _, k := range order {
		out = append(out, rows[k])
	}
	SortQuotes(out)
	return out
}

func tencentFullRow(code string, f []string) (models.QuoteEntry, bool) {
	price := coerce.Float(f[3]).Value
	if price == 0 {
		return models.QuoteEntry{}, false
	}

	symbol := strings.TrimSpace(f[2])
	if symbol == "" {
		symbol = exchange.ReplaceAllString(code, "")
	}
	mkt := market.Of(code)

	key := strings.ToLower(code)
	if mkt == models.MarketUS {
		symbol = market.PlainSymbol(symbol)
		key = "us" + strings.ToLower(symbol)
	}

	q := models.QuoteEntry{
		Entry:     models.Entry{Name: DisplayName(code, f[1], f[2]), Key: key},
		Symbol:    symbol,
		Market:    mkt,
		Currency:  market.CurrencyOf(code),
		Price:     price,
		PrevClose: coerce.Float(f[4]).Value,
		Open:      coerce.Float(f[5]).Value,
	}
	market.ComputeChange(&q)
	return q, true
}

func tencentSimpleRow(code string, f []string) (models.QuoteEntry, bool) {
	price := coerce.Float(f[3]).Value
	if price == 0 {
		return models.QuoteEntry{}, false
	}

	symbol := market.PlainSymbol(f[2])
	if symbol == "" {
		symbol = market.PlainSymbol(simpleUS.ReplaceAllString(code, ""))
	}
	change := coerce.Float(f[4])
	pct := coerce.Float(f[5])

	q := models.QuoteEntry{
		Entry:     models.Entry{Name: DisplayName("us"+symbol, f[1], symbol), Key: "us" + strings.ToLower(symbol)},
		Symbol:    symbol,
		Market:    models.MarketUS,
		Currency:  models.USD,
		Price:     price,
		Change:    change.Value,
		ChangePct: pct.Value,
		Basis:     models.BasisNone,
		Note:      SimpleRowNote,
	}
	if !change.Fallback {
		q.PrevClose = price - change.Value
		q.Basis = models.BasisPrevClose
	}
	return q, true
}

// DisplayName picks a readable name for a quote: the fixed index table
// first, then the provider name with garbled text repaired, then the
// symbol when the name is still unreadable.
func DisplayName(code, name, symbol string) string {
	if n, ok := indexNames[strings.ToLower(code)]; ok {
		return n
	}
	raw := strings.TrimSpace(name)
	sym := strings.TrimSpace(symbol)
	if sym == "" {
		sym = exchange.ReplaceAllString(code, "")
	}

	if fixed, ok := RepairGarbled(raw); ok {
		return fixed
	}
	if LooksGarbled(raw) && sym != "" {
		return sym
	}
	switch {
	case raw != "":
		return raw
	case sym != "":
		return sym
	}
	return code
}

// SortQuotes stably orders quotes by market priority.
func SortQuotes(qs []models.QuoteEntry) {
	slices.SortStableFunc(qs, func(a, b models.QuoteEntry) int {
		return market.Order(a.Market) - market.Order(b.Market)
	})
}

// TencentURL builds the batch query URL for the given provider codes.
func TencentURL(codes []string) string {
	return "https://qt.gtimg.cn/q=" + strings.Join(codes, ",")
}

var jsonpFund = regexp.MustCompile(`(?i)jsonpgz\((\{[\s\S]*\})\)`)

type fundPayload struct {
	Code   string `json:"fundcode"`
	Name   string `json:"name"`
	NavDay string `json:"jzrq"`
	Nav    string `json:"dwjz"`
	Est    string `json:"gsz"`
	EstPct string `json:"gszzl"`
	Time   string `json:"gztime"`
}

// Fund parses a fundgz.1234567.com.cn JSONP valuation response. A response
// without an estimate is an error.
func Fund(code, body string) (models.FundEntry, error) {
	m := jsonpFund.FindStringSubmatch(body)
	if m == nil {
		return models.FundEntry{}, fmt.Errorf("fund %s: no valuation payload", code)
	}
	var p fundPayload
	if err := json.Unmarshal([]byte(m[1]), &p); err != nil {
		return models.FundEntry{}, fmt.Errorf("fund %s: decoding valuation: %w", code, err)
	}

	est := coerce.Float(p.Est)
	if est.Value == 0 {
		return models.FundEntry{}, fmt.Errorf("fund %s: no estimate", code)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "基金" + code
	}
	return models.FundEntry{
		Entry:       models.Entry{Name: name, Key: "fund:" + code},
		Code:        code,
		Estimate:    est.Value,
		EstimatePct: coerce.Float(p.EstPct).Value,
		ValuedAt:    p.Time,
		NavDate:     p.NavDay,
		Nav:         coerce.Float(p.Nav).Value,
	}, nil
}

// FundURL builds the valuation URL for a fund. The cache-busting parameter
// is supplied by the caller.
func FundURL(code string, bust int64) string {
	return fmt.Sprintf("https://fundgz.1234567.com.cn/js/%s.js?rt=%d", url.PathEscape(code), bust)
}
