package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tags the detection strategy that produced an opportunity.
type Kind string

const (
	KindSpotCross      Kind = "spot_cross"
	KindKimchiPremium  Kind = "kimchi_premium"
	KindFundingArb     Kind = "funding_arb"
	KindSpotVsPerp     Kind = "spot_vs_perp"
	KindPerpPerpSpread Kind = "perp_perp_spread"
)

// Side is the direction of a leg.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Leg is one executable side of an opportunity.
type Leg struct {
	Exchange  string    `json:"exchange"`
	VenueType VenueKind `json:"venue_type"`
	Side      Side      `json:"side"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
}

// WalletStatus carries the nullable per-leg wallet flags on the wire:
// buy is the withdraw flag of the buy venue, sell the deposit flag of
// the sell venue.
type WalletStatus struct {
	Buy  *bool `json:"buy"`
	Sell *bool `json:"sell"`
}

// Opportunity is one emitted detection. Opportunities are ephemeral:
// regenerated every tick, never mutated in place.
type Opportunity struct {
	ID             string         `json:"id"`
	Type           Kind           `json:"type"`
	Symbol         string         `json:"symbol"`
	SpreadBps      float64        `json:"spread_bps"`
	ExpectedPnlPct float64        `json:"expected_pnl_pct"`
	Notional       float64        `json:"notional"`
	Timestamp      time.Time      `json:"timestamp"`
	Description    string         `json:"description"`
	Legs           []Leg          `json:"legs"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Tradeable      *bool          `json:"tradeable,omitempty"`
	DepositStatus  *WalletStatus  `json:"deposit_status,omitempty"`
}

// Venues returns the sorted set of venues across the legs. Used as part
// of the deduplication and alert keys.
func (o Opportunity) Venues() []string {
	seen := make(map[string]struct{}, len(o.Legs))
	venues := make([]string, 0, len(o.Legs))
	for _, leg := range o.Legs {
		if _, ok := seen[leg.Exchange]; ok {
			continue
		}
		seen[leg.Exchange] = struct{}{}
		venues = append(venues, leg.Exchange)
	}
	sort.Strings(venues)
	return venues
}

// idNamespace seeds deterministic opportunity IDs. The ID is a pure
// function of opportunity content so identical snapshots yield
// identical IDs.
var idNamespace = uuid.MustParse("8f3c1f0a-76b4-4c43-9a55-6fb7d4f1c2e1")

// OpportunityID derives a stable UUID from the identifying content of a
// detection.
func OpportunityID(kind Kind, symbol string, venues []string, spreadBps float64) string {
	sorted := append([]string(nil), venues...)
	sort.Strings(sorted)
	content := fmt.Sprintf("%s|%s|%s|%.3f", kind, symbol, strings.Join(sorted, ","), spreadBps)
	return uuid.NewSHA1(idNamespace, []byte(content)).String()
}

// RoundTo rounds x to the given number of decimal places.
func RoundTo(x float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(x*scale) / scale
}

// FormatPrice renders a price with precision scaled to its magnitude.
func FormatPrice(price float64) string {
	var s string
	switch {
	case price >= 1000:
		return fmt.Sprintf("%.2f", price)
	case price >= 1:
		s = fmt.Sprintf("%.5f", price)
	case price >= 0.01:
		s = fmt.Sprintf("%.6f", price)
	default:
		s = fmt.Sprintf("%.8f", price)
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
