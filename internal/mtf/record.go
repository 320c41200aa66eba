// Package mtf fetches the Groww margin trading facility (MTF) listing, splits it by leverage
// and exports the buckets as CSV files.
package mtf

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Fields is the fixed CSV column order.
var Fields = []string{"companyName", "symbolIsin", "leverage", "searchId"}

// Record is one validated listing entry.
type Record struct {
	CompanyName string
	SymbolISIN  string
	Leverage    decimal.Decimal
	SearchID    *string
}

// Skip reasons reported to metrics and logs.
const (
	SkipMissingField     = "missing_field"
	SkipZeroMarketCap    = "zero_market_cap"
	SkipNegativeLeverage = "negative_leverage"
)

type listingPage struct {
	Data []rawRecord `json:"data"`
}

type rawRecord struct {
	CompanyName *string             `json:"companyName"`
	SymbolISIN  *string             `json:"symbolIsin"`
	Leverage    decimal.NullDecimal `json:"leverage"`
	MarketCap   decimal.NullDecimal `json:"marketCap"`
	SearchID    *string             `json:"searchId"`
}

// validate converts a raw entry into a Record. The second value is the skip reason when the entry is rejected.
func (r rawRecord) validate() (Record, string) {
	name := trimmed(r.CompanyName)
	isin := trimmed(r.SymbolISIN)
	if name == "" || isin == "" {
		return Record{}, SkipMissingField
	}

	if !r.MarketCap.Valid || r.MarketCap.Decimal.IsZero() {
		return Record{}, SkipZeroMarketCap
	}

	leverage := decimal.Zero
	if r.Leverage.Valid {
		leverage = r.Leverage.Decimal
	}
	if leverage.IsNegative() {
		return Record{}, SkipNegativeLeverage
	}

	var searchID *string
	if id := trimmed(r.SearchID); id != "" {
		searchID = &id
	}

	return Record{
		CompanyName: name,
		SymbolISIN:  isin,
		Leverage:    leverage,
		SearchID:    searchID,
	}, ""
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
