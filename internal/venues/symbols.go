package venues

import "strings"

// Known quote currencies, longest first so greedy suffix matching splits
// canonical symbols correctly.
var quoteCurrencies = []string{"USDT", "USDC", "TUSD", "BUSD", "KRW", "USD", "BTC", "ETH", "EUR"}

// NormalizeSymbol canonicalizes a venue symbol: delimiters removed, perp
// contract suffixes stripped, upper-cased. KRW-prefixed markets keep
// their base/quote order (KRW-BTC means BTC quoted in KRW).
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, suffix := range []string{"-SWAP", "-PERP", "_SWAP", "_PERP"} {
		s = strings.TrimSuffix(s, suffix)
	}
	// KRW-BTC style markets put the quote first.
	if base, ok := strings.CutPrefix(s, "KRW-"); ok {
		return base + "KRW"
	}
	if base, ok := strings.CutPrefix(s, "KRW_"); ok {
		return base + "KRW"
	}
	for _, delim := range []string{"-", "_", "/", ":"} {
		s = strings.ReplaceAll(s, delim, "")
	}
	return s
}

// SplitSymbol splits a canonical symbol into base and quote by matching
// a known quote-currency suffix. Returns false when no known quote
// matches.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q, true
		}
	}
	return "", "", false
}

// SplitPair splits a slash-delimited pair like BTC/USDT.
func SplitPair(pair string) (base, quote string, ok bool) {
	parts := strings.SplitN(strings.ToUpper(pair), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Universe is the configured trading universe as base assets and
// base/quote pairs. An empty universe admits everything.
type Universe struct {
	pairs map[string]struct{}
	bases map[string]struct{}
}

// NewUniverse builds a universe from slash-delimited pairs.
func NewUniverse(pairs []string) *Universe {
	u := &Universe{
		pairs: make(map[string]struct{}, len(pairs)),
		bases: make(map[string]struct{}, len(pairs)),
	}
	for _, p := range pairs {
		base, quote, ok := SplitPair(p)
		if !ok {
			continue
		}
		u.pairs[base+quote] = struct{}{}
		u.bases[base] = struct{}{}
	}
	return u
}

// Empty reports whether no universe restriction is configured.
func (u *Universe) Empty() bool { return len(u.pairs) == 0 }

// AllowsSymbol reports whether the canonical symbol is in the universe.
func (u *Universe) AllowsSymbol(symbol string) bool {
	if u.Empty() {
		return true
	}
	_, ok := u.pairs[symbol]
	return ok
}

// AllowsBase reports whether the base asset is in the universe. KRW and
// perp markets are admitted by base so the same coin matches across
// quote currencies.
func (u *Universe) AllowsBase(base string) bool {
	if u.Empty() {
		return true
	}
	_, ok := u.bases[base]
	return ok
}

// Bases returns the universe's base assets.
func (u *Universe) Bases() []string {
	out := make([]string, 0, len(u.bases))
	for b := range u.bases {
		out = append(out, b)
	}
	return out
}
