package models

// Item is one scraped entry in any of the supported domains.
type Item interface {
	// DedupKey identifies the item within one fetch and across delivery
	// history. It is already normalized (lower-cased).
	DedupKey() string
	DisplayName() string
	SourceURL() string
	// SearchText is the text keyword filters match against.
	SearchText() string
}

// Entry holds the fields shared by every item variant.
type Entry struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url,omitempty"`
}

func (e Entry) DedupKey() string    { return e.Key }
func (e Entry) DisplayName() string { return e.Name }
func (e Entry) SourceURL() string   { return e.URL }
func (e Entry) SearchText() string  { return e.Name }

// NewsEntry is a numbered headline scraped from a daily news page.
type NewsEntry struct {
	Entry
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// RepoEntry is a repository row scraped from a trending page.
type RepoEntry struct {
	Entry
	Stars       int    `json:"stars"`
	Language    string `json:"language,omitempty"`
	Growth      string `json:"growth,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r RepoEntry) SearchText() string {
	return r.Name + " " + r.Description
}

// Market tags a quote by the exchange group it trades on.
type Market string

const (
	MarketCN   Market = "CN"
	MarketHK   Market = "HK"
	MarketUS   Market = "US"
	MarketFund Market = "FUND"
)

// Currency tags how a price is denominated. Indices are quoted in points.
type Currency string

const (
	CNY   Currency = "CNY"
	HKD   Currency = "HKD"
	USD   Currency = "USD"
	Point Currency = "POINT"
)

// ChangeBasis records which reference price a quote's change was computed
// against.
type ChangeBasis string

const (
	// BasisPrevClose is the normal case.
	BasisPrevClose ChangeBasis = "prev_close"
	// BasisOpen means the previous close was unavailable and the change is
	// relative to today's opening price.
	BasisOpen ChangeBasis = "open"
	// BasisNone means neither reference price was available; change is zero.
	BasisNone ChangeBasis = "none"
)

// QuoteEntry is a stock, ETF or index quote.
type QuoteEntry struct {
	Entry
	Symbol    string      `json:"symbol"`
	Market    Market      `json:"market"`
	Currency  Currency    `json:"currency"`
	Price     float64     `json:"price"`
	PrevClose float64     `json:"prev_close"`
	Open      float64     `json:"open"`
	Change    float64     `json:"change"`
	ChangePct float64     `json:"change_pct"`
	Basis     ChangeBasis `json:"basis"`
	Note      string      `json:"note,omitempty"`
}

// Degraded reports whether the change was not computed against the previous
// close.
func (q QuoteEntry) Degraded() bool {
	return q.Basis != BasisPrevClose
}

// FundEntry is an intraday valuation estimate for an off-exchange fund.
type FundEntry struct {
	Entry
	Code        string  `json:"code"`
	Estimate    float64 `json:"estimate"`
	EstimatePct float64 `json:"estimate_pct"`
	ValuedAt    string  `json:"valued_at,omitempty"`
	NavDate     string  `json:"nav_date,omitempty"`
	Nav         float64 `json:"nav,omitempty"`
}
