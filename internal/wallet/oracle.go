// Package wallet tracks deposit/withdraw capability per (venue, asset)
// and answers the tradeability question for cross-venue transfers.
// Venues without a public wallet endpoint simply never report, which
// leaves their flags unknown rather than assumed open.
package wallet

import (
	"sync"

	"github.com/arbcommand/arbcommand/internal/model"
)

type key struct {
	venue string
	asset string
}

// Oracle is the in-memory wallet capability table.
type Oracle struct {
	mu     sync.RWMutex
	states map[key]model.WalletState
}

// NewOracle returns an empty oracle; every lookup starts unknown.
func NewOracle() *Oracle {
	return &Oracle{states: make(map[key]model.WalletState)}
}

// Update merges a batch of wallet states from one venue refresh.
func (o *Oracle) Update(states []model.WalletState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range states {
		o.states[key{venue: s.Venue, asset: s.Asset}] = s
	}
}

// Status returns the state for (venue, asset); both flags are unknown
// when the venue never reported the asset.
func (o *Oracle) Status(venue, asset string) model.WalletState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if s, ok := o.states[key{venue: venue, asset: asset}]; ok {
		return s
	}
	return model.WalletState{Venue: venue, Asset: asset}
}

// Transferability answers whether asset can be moved from one venue to
// another: withdraw on the source and deposit on the destination. The
// result is tri-state: false wins over unknown, unknown wins over true.
func (o *Oracle) Transferability(fromVenue, toVenue, asset string) (tradeable *bool, status model.WalletStatus) {
	withdraw := o.Status(fromVenue, asset).Withdraw
	deposit := o.Status(toVenue, asset).Deposit

	status = model.WalletStatus{
		Buy:  withdraw.Bool(),
		Sell: deposit.Bool(),
	}

	if withdraw == model.FlagDisabled || deposit == model.FlagDisabled {
		v := false
		return &v, status
	}
	if !withdraw.Known() || !deposit.Known() {
		return nil, status
	}
	v := true
	return &v, status
}
