package simstate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	store, err := NewStore(t.TempDir(), "Paper Testnet!")
	require.NoError(t, err)
	assert.Contains(t, store.Path(), "paper_testnet.json")

	state, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, state, "missing file is empty state")

	want := State{
		Cash: "9500.5",
		Positions: map[string]StoredPosition{
			"BTC": {Size: "-0.01", EntryPrice: "50000", Leverage: 2, Margin: "250"},
		},
		Triggers: []StoredTrigger{
			{OrderID: 3, Coin: "BTC", Kind: "sl", IsBuy: true, Size: "0.01", TriggerPx: "51500"},
		},
		Leverage:    map[string]int{"BTC": 2},
		NextOrderID: 4,
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestStore_CorruptFile(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)
	assert.Contains(t, store.Path(), "paper.json")

	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))
	_, err = store.Load()
	assert.Error(t, err)
}
