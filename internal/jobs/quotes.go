package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/pushkit/internal/args"
	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/extract"
	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/market"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/present"
)

var (
	quotesCodesField  = args.Field{Keys: []string{"stockCodes", "codes", "code", "list"}, Setting: "stockCodes"}
	quotesRouteField  = args.Field{Keys: []string{"node", "netNode"}, Setting: "netNode"}
	quotesUSModeField = args.Field{Keys: []string{"usTimeMode"}, Setting: "usTimeMode"}
	quotesSlotField   = args.Field{Keys: []string{"slot"}}
)

// errNoQuotes is returned when neither provider produced a quote.
var errNoQuotes = errors.New("no quotes fetched")

// Quotes pushes stock, index and fund quotes for the markets of the current
// push slot.
type Quotes struct {
	Config config.QuotesConfig
}

func (j *Quotes) Name() string        { return "quotes" }
func (j *Quotes) Description() string { return "行情推送：A股/港股/美股/场外基金，按推送时段分组" }

// Run exits silently outside every push slot unless the argument sets
// slot=any. Exchange quotes and fund valuations are fetched concurrently;
// a failing group leaves the other's lines in the message.
func (j *Quotes) Run(ctx context.Context, env *Env, argument string) (Outcome, error) {
	r := args.NewResolver(args.Parse(argument, "stockCodes"), env.Settings)
	p := env.presenter()
	now := env.now()
	title := present.DailyTitle(p.Today())

	codesField := quotesCodesField
	codesField.Default = strings.Join(j.Config.Codes, ",")
	modeField := quotesUSModeField
	modeField.Default = j.Config.USTimeMode
	routeField := quotesRouteField
	routeField.Default = j.Config.Route

	slot := market.AllMarkets
	if !strings.EqualFold(r.String(ctx, quotesSlotField), "any") {
		var ok bool
		slot, ok = market.ResolveSlot(now, market.ParseUSTimeMode(r.String(ctx, modeField)))
		if !ok {
			return Outcome{Skipped: "outside push slot " + now.Format("15:04")}, nil
		}
	}

	codes := SplitCodes(r.String(ctx, codesField))
	if len(codes) == 0 {
		return Outcome{Sent: env.send(ctx, present.QuotesConfigHint(title))}, nil
	}

	split := market.SplitByMarket(codes)
	if len(split.Unresolved) > 0 {
		slog.Warn("unrecognized security codes", "codes", split.Unresolved)
	}

	var quoteCodes []string
	for _, m := range slot.Markets {
		quoteCodes = append(quoteCodes, split.Quotes[m]...)
	}
	var fundCodes []string
	if slot.Includes(models.MarketFund) {
		fundCodes = split.Funds
	}
	slog.Info("quotes slot", "slot", slot.Key, "label", slot.Label, "quotes", len(quoteCodes), "funds", len(fundCodes))

	board := present.QuoteBoard{Title: title, Slot: slot}
	route := r.Route(ctx, routeField)
	bust := now.UnixMilli()

	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(quoteCodes) > 0 {
		g.Go(func() error {
			res, err := fetch.Fetch(gctx, env.HTTP, fetch.Request{URL: extract.TencentURL(quoteCodes), Route: route})
			if err != nil {
				slog.Warn("tencent quote query failed", "error", err)
				fail(fmt.Errorf("tencent: %w", err))
				return nil
			}
			board.Quotes = extract.Tencent(res.Body)
			return nil
		})
	}
	if len(fundCodes) > 0 {
		g.Go(func() error {
			for _, code := range fundCodes {
				if err := gctx.Err(); err != nil {
					return err
				}
				f, err := fetchFund(gctx, env.HTTP, code, route, bust)
				if err != nil {
					slog.Warn("fund valuation failed", "code", code, "error", err)
					fail(err)
					continue
				}
				board.Funds = append(board.Funds, f)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	msg, ok := p.Quotes(board)
	sent := env.send(ctx, msg)
	if !ok {
		return Outcome{Sent: sent}, errors.Join(append([]error{errNoQuotes}, errs...)...)
	}
	return Outcome{Sent: sent}, nil
}

func fetchFund(ctx context.Context, d fetch.Doer, code, route string, bust int64) (models.FundEntry, error) {
	res, err := fetch.Fetch(ctx, d, fetch.Request{
		URL:     extract.FundURL(code, bust),
		Route:   route,
		Headers: map[string]string{"Referer": "https://fund.eastmoney.com/"},
	})
	if err != nil {
		return models.FundEntry{}, fmt.Errorf("fund %s: %w", code, err)
	}
	return extract.Fund(code, res.Body)
}

// SplitCodes splits a code list on commas (ASCII or full-width),
// semicolons and whitespace.
func SplitCodes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '，', ';', '；', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
}
