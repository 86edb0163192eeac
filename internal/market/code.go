// Package market classifies user-entered security codes and computes quote
// changes.
package market

import (
	"regexp"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// Kind says which provider serves a target.
type Kind int

const (
	KindQuote Kind = iota + 1
	KindFund
)

// Target is one user-entered code resolved to provider query codes.
type Target struct {
	Kind Kind
	// Codes are quote-provider codes such as "sh600519" or "usAAPL". US
	// tickers expand to several alternatives, the last being the simple
	// "s_us" row.
	Codes    []string
	FundCode string
	Display  string
}

var indexCodes = map[string]string{
	"000001": "sh000001",
	"000300": "sh000300",
	"399001": "sz399001",
	"399006": "sz399006",
	"399905": "sz399905",
	"399303": "sz399303",
}

var (
	explicitFund = regexp.MustCompile(`(?i)^fund:(\d{6})$`)
	prefixedA    = regexp.MustCompile(`(?i)^(sh|sz|bj)\d{6}$`)
	prefixedHK   = regexp.MustCompile(`(?i)^hk\d{5}$`)
	prefixedUS   = regexp.MustCompile(`(?i)^us[\w.]+$`)
	sixDigits    = regexp.MustCompile(`^\d{6}$`)
	fiveDigits   = regexp.MustCompile(`^\d{5}$`)
	fundLike     = regexp.MustCompile(`^0[123]\d{4}$`)
	shenzhen     = regexp.MustCompile(`^(00|30|02|15|16)\d{4}$`)
	shanghai     = regexp.MustCompile(`^(60|68|51|52|53|56|58)\d{4}$`)
	beijing      = regexp.MustCompile(`^(83|87|43)\d{4}$`)
	usTicker     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{0,10}$`)
	indexCode    = regexp.MustCompile(`^(sh000\d{3}|sz399\d{3})$`)
)

// ParseCode resolves one user-entered code. The rules are applied in order:
// explicit "fund:" prefix, exchange-prefixed codes, the six-digit index
// table, the 01/02/03 fund heuristic, A-share prefixes, five-digit Hong Kong
// codes, then US tickers. It reports false when nothing matches.
func ParseCode(raw string) (Target, bool) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.EqualFold(s[:2], "s_") {
		s = s[2:]
	}

	if m := explicitFund.FindStringSubmatch(s); m != nil {
		return Target{Kind: KindFund, FundCode: m[1], Display: s}, true
	}
	if prefixedA.MatchString(s) || prefixedHK.MatchString(s) {
		code := strings.ToLower(s)
		return Target{Kind: KindQuote, Codes: []string{code}, Display: s}, true
	}
	if prefixedUS.MatchString(s) {
		return Target{Kind: KindQuote, Codes: usCodes(s[2:]), Display: s}, true
	}

	if sixDigits.MatchString(s) {
		if idx, ok := indexCodes[s]; ok {
			return Target{Kind: KindQuote, Codes: []string{idx}, Display: idx}, true
		}
		if fundLike.MatchString(s) {
			return Target{Kind: KindFund, FundCode: s, Display: "fund:" + s}, true
		}
		if code := aShare(s); code != "" {
			return Target{Kind: KindQuote, Codes: []string{code}, Display: code}, true
		}
	}

	if fiveDigits.MatchString(s) {
		return Target{Kind: KindQuote, Codes: []string{"hk" + s}, Display: "hk" + s}, true
	}
	if usTicker.MatchString(s) {
		return Target{Kind: KindQuote, Codes: usCodes(s), Display: s}, true
	}
	return Target{}, false
}

func aShare(code string) string {
	switch {
	case shenzhen.MatchString(code):
		return "sz" + code
	case shanghai.MatchString(code):
		return "sh" + code
	case beijing.MatchString(code):
		return "bj" + code
	}
	return ""
}

func usCodes(ticker string) []string {
	base := strings.ToUpper(strings.Join(strings.Fields(ticker), ""))
	plain := PlainSymbol(base)
	out := []string{"us" + plain}
	if strings.Contains(base, ".") {
		out = append(out, "us"+base)
	}
	return uniqueFold(append(out, "s_us"+plain))
}

// PlainSymbol strips an exchange suffix from a US ticker: "TSLA.OQ" -> "TSLA".
func PlainSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Of returns the market a quote-provider code trades on.
func Of(code string) models.Market {
	c := strings.ToLower(code)
	switch {
	case strings.HasPrefix(c, "hk"):
		return models.MarketHK
	case strings.HasPrefix(c, "us"), strings.HasPrefix(c, "s_us"):
		return models.MarketUS
	}
	return models.MarketCN
}

// IsIndex reports whether a quote-provider code is a Shanghai or Shenzhen
// index, which is quoted in points.
func IsIndex(code string) bool {
	return indexCode.MatchString(strings.ToLower(code))
}

// CurrencyOf returns the denomination of a quote.
func CurrencyOf(code string) models.Currency {
	if IsIndex(code) {
		return models.Point
	}
	switch Of(code) {
	case models.MarketHK:
		return models.HKD
	case models.MarketUS:
		return models.USD
	}
	return models.CNY
}

// Split groups parsed targets by market. Quote codes are de-duplicated per
// market and fund codes overall; unresolved inputs are returned verbatim.
type Split struct {
	Quotes     map[models.Market][]string
	Funds      []string
	Unresolved []string
}

// SplitByMarket parses every input and groups the results.
func SplitByMarket(inputs []string) Split {
	out := Split{Quotes: make(map[models.Market][]string)}
	seenFund := make(map[string]bool)
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		t, ok := ParseCode(in)
		if !ok {
			out.Unresolved = append(out.Unresolved, in)
			continue
		}
		if t.Kind == KindFund {
			if !seenFund[t.FundCode] {
				seenFund[t.FundCode] = true
				out.Funds = append(out.Funds, t.FundCode)
			}
			continue
		}
		for _, c := range t.Codes {
			m := Of(c)
			out.Quotes[m] = append(out.Quotes[m], c)
		}
	}
	for m, codes := range out.Quotes {
		out.Quotes[m] = uniqueFold(codes)
	}
	return out
}

func uniqueFold(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// Order is the display priority of a market: domestic equities first, then
// regional, international and fund-type.
func Order(m models.Market) int {
	switch m {
	case models.MarketCN:
		return 1
	case models.MarketHK:
		return 2
	case models.MarketUS:
		return 3
	case models.MarketFund:
		return 4
	}
	return 9
}
