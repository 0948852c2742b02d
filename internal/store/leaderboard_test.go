package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesaja2/tradesim-live/internal/event"
)

func TestAssignRanks(t *testing.T) {
	ordered := []standingRow{
		{teamName: "Alpha", portfolioValue: "12500.00", gains: "2500.00", trades: 18},
		{teamName: "Beta", portfolioValue: "10100.50", gains: "100.50", trades: 9},
		{teamName: "Gamma", portfolioValue: "9400.00", gains: "-600.00", trades: 3},
	}

	entries := assignRanks(ordered)
	require.Len(t, entries, 3)

	assert.Equal(t, event.LeaderboardEntry{
		Rank: 1, TeamName: "Alpha", PortfolioValue: "12500.00", Gains: "2500.00", Trades: 18,
	}, entries[0])
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "Beta", entries[1].TeamName)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, "-600.00", entries[2].Gains)
}

func TestAssignRanksEmpty(t *testing.T) {
	entries := assignRanks(nil)
	require.NotNil(t, entries)
	assert.Empty(t, entries)
}
