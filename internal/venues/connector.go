// Package venues implements the per-venue feed adapters. A connector
// implements only the capability interfaces its venue supports; the
// scheduler discovers capabilities by type assertion and publishes the
// results into the market snapshot.
package venues

import (
	"context"
	"errors"
	"fmt"

	"github.com/arbcommand/arbcommand/internal/model"
)

// Connector is the base capability every venue adapter implements.
type Connector interface {
	Name() string
}

// SpotFeed fetches normalized spot top-of-book tickers.
type SpotFeed interface {
	Connector
	FetchSpotTickers(ctx context.Context) ([]model.Ticker, error)
}

// PerpFeed fetches normalized perpetual markets (book + funding + OI).
// Funding rates are returned in the venue-native interval; 8h
// normalization happens centrally in the detector.
type PerpFeed interface {
	Connector
	FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error)
}

// WalletFeed fetches per-asset deposit/withdraw capability.
type WalletFeed interface {
	Connector
	FetchWalletStates(ctx context.Context) ([]model.WalletState, error)
}

// ErrorKind classifies a connector failure for the scheduler's retry
// policy.
type ErrorKind int

const (
	// ErrNetwork is transient; retried on the next tick.
	ErrNetwork ErrorKind = iota
	// ErrDecode is structural; the slice is left stale and not retried
	// faster.
	ErrDecode
	// ErrRateLimited triggers exponential backoff for the venue.
	ErrRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrDecode:
		return "decode"
	case ErrRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// VenueError wraps a failure with its venue and classification.
type VenueError struct {
	Venue string
	Kind  ErrorKind
	Err   error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Venue, e.Kind, e.Err)
}

func (e *VenueError) Unwrap() error { return e.Err }

// Classify extracts the error kind, defaulting to network for plain
// errors.
func Classify(err error) ErrorKind {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ErrNetwork
}
