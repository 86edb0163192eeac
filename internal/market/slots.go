package market

import (
	"slices"
	"strings"
	"time"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// USTimeMode selects which US session table applies.
type USTimeMode string

const (
	Summer USTimeMode = "SUMMER"
	Winter USTimeMode = "WINTER"
)

// ParseUSTimeMode maps anything other than "WINTER" to Summer.
func ParseUSTimeMode(s string) USTimeMode {
	if strings.EqualFold(strings.TrimSpace(s), string(Winter)) {
		return Winter
	}
	return Summer
}

// Slot is a push window: the markets worth reporting at that local time.
type Slot struct {
	Key     string
	Label   string
	Markets []models.Market
}

// Includes reports whether m is reported in this slot.
func (s Slot) Includes(m models.Market) bool {
	return slices.Contains(s.Markets, m)
}

var (
	cn, hk, us, fund = models.MarketCN, models.MarketHK, models.MarketUS, models.MarketFund

	commonSlots = map[string]Slot{
		"09:40": {Label: "A股/港股 开盘后", Markets: []models.Market{cn, hk, fund}},
		"11:30": {Label: "A股 午间", Markets: []models.Market{cn, fund}},
		"12:00": {Label: "港股 午间", Markets: []models.Market{hk}},
		"14:00": {Label: "盘中", Markets: []models.Market{cn, hk, fund}},
		"15:05": {Label: "A股 收盘", Markets: []models.Market{cn, fund}},
		"16:05": {Label: "港股 收盘", Markets: []models.Market{hk}},
	}

	usSlots = map[USTimeMode]map[string]Slot{
		Summer: {
			"21:40": {Label: "美股 开盘后", Markets: []models.Market{us}},
			"00:40": {Label: "美股 盘中", Markets: []models.Market{us}},
			"03:40": {Label: "美股 盘中", Markets: []models.Market{us}},
			"04:05": {Label: "美股 收盘", Markets: []models.Market{us}},
		},
		Winter: {
			"22:40": {Label: "美股 开盘后", Markets: []models.Market{us}},
			"01:40": {Label: "美股 盘中", Markets: []models.Market{us}},
			"04:40": {Label: "美股 盘中", Markets: []models.Market{us}},
			"05:05": {Label: "美股 收盘", Markets: []models.Market{us}},
		},
	}
)

// AllMarkets is the slot used when gating is disabled.
var AllMarkets = Slot{Key: "any", Label: "行情", Markets: []models.Market{cn, hk, us, fund}}

// ResolveSlot returns the push slot matching the hour and minute of now, in
// now's location. It reports false outside every slot.
func ResolveSlot(now time.Time, mode USTimeMode) (Slot, bool) {
	key := now.Format("15:04")
	if s, ok := commonSlots[key]; ok {
		s.Key = key
		return s, true
	}
	if s, ok := usSlots[ParseUSTimeMode(string(mode))][key]; ok {
		s.Key = key
		return s, true
	}
	return Slot{}, false
}
