package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcommand/arbcommand/internal/model"
)

func state(venue, asset string, dep, wd model.Flag) model.WalletState {
	return model.WalletState{
		Venue: venue, Asset: asset,
		Deposit: dep, Withdraw: wd,
		Timestamp: time.Now().UTC(),
	}
}

func TestTransferabilityBothEnabled(t *testing.T) {
	o := NewOracle()
	o.Update([]model.WalletState{
		state("binance", "BTC", model.FlagEnabled, model.FlagEnabled),
		state("upbit", "BTC", model.FlagEnabled, model.FlagEnabled),
	})

	tradeable, status := o.Transferability("binance", "upbit", "BTC")
	require.NotNil(t, tradeable)
	assert.True(t, *tradeable)
	require.NotNil(t, status.Buy)
	assert.True(t, *status.Buy)
	require.NotNil(t, status.Sell)
	assert.True(t, *status.Sell)
}

func TestTransferabilityDisabledWins(t *testing.T) {
	o := NewOracle()
	o.Update([]model.WalletState{
		state("binance", "BTC", model.FlagEnabled, model.FlagDisabled),
		state("upbit", "BTC", model.FlagEnabled, model.FlagEnabled),
	})

	tradeable, status := o.Transferability("binance", "upbit", "BTC")
	require.NotNil(t, tradeable)
	assert.False(t, *tradeable)
	require.NotNil(t, status.Buy)
	assert.False(t, *status.Buy, "buy side reflects the source venue's withdraw flag")
}

func TestTransferabilityDisabledWinsOverUnknown(t *testing.T) {
	o := NewOracle()
	// Source venue never reported; destination deposit is disabled.
	o.Update([]model.WalletState{
		state("upbit", "BTC", model.FlagDisabled, model.FlagEnabled),
	})

	tradeable, status := o.Transferability("binance", "upbit", "BTC")
	require.NotNil(t, tradeable)
	assert.False(t, *tradeable, "a definite false beats an unknown")
	assert.Nil(t, status.Buy)
	require.NotNil(t, status.Sell)
	assert.False(t, *status.Sell)
}

func TestTransferabilityUnknownPropagates(t *testing.T) {
	o := NewOracle()
	o.Update([]model.WalletState{
		state("upbit", "BTC", model.FlagEnabled, model.FlagEnabled),
	})

	tradeable, status := o.Transferability("binance", "upbit", "BTC")
	assert.Nil(t, tradeable, "unknown without a definite false stays unknown")
	assert.Nil(t, status.Buy)
	require.NotNil(t, status.Sell)
	assert.True(t, *status.Sell)
}

func TestStatusDefaultsUnknown(t *testing.T) {
	o := NewOracle()
	s := o.Status("binance", "BTC")
	assert.Equal(t, model.FlagUnknown, s.Deposit)
	assert.Equal(t, model.FlagUnknown, s.Withdraw)
}

func TestUpdateReplacesExisting(t *testing.T) {
	o := NewOracle()
	o.Update([]model.WalletState{state("upbit", "BTC", model.FlagEnabled, model.FlagEnabled)})
	o.Update([]model.WalletState{state("upbit", "BTC", model.FlagDisabled, model.FlagEnabled)})

	assert.Equal(t, model.FlagDisabled, o.Status("upbit", "BTC").Deposit)
}
