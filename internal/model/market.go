// Package model defines the normalized market-data types shared by the
// connector layer, the detection engine and the wire API.
package model

import "time"

// VenueKind distinguishes the market a quote came from.
type VenueKind string

const (
	VenueSpot VenueKind = "spot"
	VenuePerp VenueKind = "perp"
	VenueFX   VenueKind = "fx"
)

// Instrument is a canonical trading pair. Base and Quote are upper-case
// asset codes with no venue-specific delimiter (BTC/USDT -> BTCUSDT).
type Instrument struct {
	Base  string
	Quote string
	Kind  VenueKind
}

// Symbol returns the canonical delimiter-free symbol, e.g. BTCUSDT.
func (i Instrument) Symbol() string { return i.Base + i.Quote }

// Pair returns the slash-delimited display form, e.g. BTC/USDT.
func (i Instrument) Pair() string { return i.Base + "/" + i.Quote }

// Ticker is a top-of-book quote for one (venue, instrument). Bid and Ask
// are optional; Last must be positive for the ticker to be usable.
type Ticker struct {
	Venue      string
	Instrument Instrument
	Last       float64
	Bid        float64
	Ask        float64
	Timestamp  time.Time
}

// Valid reports whether the ticker carries a usable price.
func (t Ticker) Valid() bool { return t.Last > 0 }

// Fresh reports whether the ticker is younger than maxAge at now.
func (t Ticker) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(t.Timestamp) <= maxAge
}

// Mid returns the bid/ask midpoint, falling back to Last when either
// side of the book is missing.
func (t Ticker) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// BuyPrice is the price a taker pays on this venue: the ask when the
// book is available, otherwise the last trade.
func (t Ticker) BuyPrice() float64 {
	if t.Ask > 0 {
		return t.Ask
	}
	return t.Last
}

// SellPrice is the price a taker receives on this venue.
func (t Ticker) SellPrice() float64 {
	if t.Bid > 0 {
		return t.Bid
	}
	return t.Last
}

// FundingRate is a perpetual funding rate in its venue-native interval.
// Connectors never normalize; detectors compare via Rate8h.
type FundingRate struct {
	RatePerInterval float64
	IntervalHours   float64
	NextFundingTime time.Time
}

// Rate8h normalizes the native-interval rate to an 8-hour equivalent.
func (f FundingRate) Rate8h() float64 {
	if f.IntervalHours <= 0 {
		return 0
	}
	return f.RatePerInterval * (8 / f.IntervalHours)
}

// PerpMarket fuses top-of-book, funding and open interest for one
// perpetual contract on one venue.
type PerpMarket struct {
	Venue                 string
	Base                  string
	Quote                 string
	Bid                   float64
	Ask                   float64
	Mark                  float64
	Funding               FundingRate
	OpenInterestUSD       float64
	OpenInterestContracts float64
	Timestamp             time.Time
}

// Mid returns the bid/ask midpoint, falling back to the mark price.
func (p PerpMarket) Mid() float64 {
	if p.Bid > 0 && p.Ask > 0 {
		return (p.Bid + p.Ask) / 2
	}
	return p.Mark
}

// Price returns the best available reference price for sizing.
func (p PerpMarket) Price() float64 {
	if mid := p.Mid(); mid > 0 {
		return mid
	}
	return p.Mark
}

// SpreadBps is the venue's own top-of-book spread in basis points.
func (p PerpMarket) SpreadBps() float64 {
	mid := p.Mid()
	if mid <= 0 || p.Bid <= 0 || p.Ask <= 0 {
		return 0
	}
	return (p.Ask - p.Bid) / mid * 10000
}

// Fresh reports whether the perp entry is younger than maxAge at now.
func (p PerpMarket) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.Timestamp) <= maxAge
}

// Sanity band for the KRW/USD exchange rate. Values outside are rejected
// by the FX resolver unless the explicit fallback is in effect.
const (
	FxBandLow  = 1000.0
	FxBandHigh = 2000.0
)

// FxRate is the USD<->KRW conversion used by the kimchi detector.
type FxRate struct {
	KRWPerUSD float64
	Source    string
	Stale     bool
	Timestamp time.Time
}

// USDPerKRW returns the inverse rate.
func (f FxRate) USDPerKRW() float64 {
	if f.KRWPerUSD <= 0 {
		return 0
	}
	return 1 / f.KRWPerUSD
}

// InBand reports whether the rate is inside the sanity band.
func (f FxRate) InBand() bool {
	return f.KRWPerUSD >= FxBandLow && f.KRWPerUSD <= FxBandHigh
}

// Flag is a tri-state wallet capability: enabled, disabled or unknown.
type Flag int8

const (
	FlagUnknown Flag = iota
	FlagEnabled
	FlagDisabled
)

// Bool returns the flag as a nullable boolean for the wire format.
func (f Flag) Bool() *bool {
	switch f {
	case FlagEnabled:
		v := true
		return &v
	case FlagDisabled:
		v := false
		return &v
	default:
		return nil
	}
}

// Known reports whether the flag carries a definite value.
func (f Flag) Known() bool { return f != FlagUnknown }

// WalletState is the deposit/withdraw capability of one asset on one
// venue. Unknown flags propagate to opportunities rather than blocking.
type WalletState struct {
	Venue     string
	Asset     string
	Deposit   Flag
	Withdraw  Flag
	Timestamp time.Time
}
