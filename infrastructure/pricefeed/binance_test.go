package pricefeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	price, err := parsePrice("150.25")
	require.NoError(t, err)
	assert.Equal(t, int64(15_025_000_000), price)

	price, err = parsePrice("0.00000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), price)

	_, err = parsePrice("0")
	assert.Error(t, err)

	_, err = parsePrice("not-a-number")
	assert.Error(t, err)
}

func TestGetPrice_Staleness(t *testing.T) {
	feed := NewBinanceFeed("wss://example.invalid/ws", []string{"SOLUSDT"}, 100*time.Millisecond)
	ctx := context.Background()

	_, err := feed.GetPrice(ctx, "SOLUSDT")
	assert.Error(t, err)

	feed.setPrice("SOLUSDT", 15_000_000_000)

	snapshot, err := feed.GetPrice(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.True(t, snapshot.Verified)
	assert.Equal(t, int64(15_000_000_000), snapshot.Price)
	assert.Equal(t, "binance", snapshot.Source)

	// A price older than maxAge stays readable but unverified
	time.Sleep(150 * time.Millisecond)
	snapshot, err = feed.GetPrice(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.False(t, snapshot.Verified)
}
