package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/jamesaja2/tradesim-live/internal/event"
	"github.com/jamesaja2/tradesim-live/internal/metrics"
)

const defaultLeaderboardLimit = 10

// standings are ordered by the database; rank is assigned in scan order.
const leaderboardQuery = `
SELECT p.team_name,
       (p.current_balance + p.total_investments)::text AS portfolio_value,
       (p.current_balance + p.total_investments - p.starting_balance)::text AS gains,
       COUNT(t.id) AS trades
FROM participants p
LEFT JOIN transactions t
       ON t.participant_id = p.id AND t.status = 'completed'
GROUP BY p.id, p.team_name, p.current_balance, p.total_investments, p.starting_balance
ORDER BY (p.current_balance + p.total_investments) DESC
LIMIT $1`

// LeaderboardRepo reads the current standings. Reads go through a circuit
// breaker so a struggling database cannot stall the leaderboard-refresh
// producer path.
type LeaderboardRepo struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
	limit   int
}

func NewLeaderboardRepo(pool *pgxpool.Pool) *LeaderboardRepo {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "leaderboard-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &LeaderboardRepo{
		pool:    pool,
		breaker: breaker,
		limit:   defaultLeaderboardLimit,
	}
}

// Standings returns the current ranked leaderboard entries.
func (r *LeaderboardRepo) Standings(ctx context.Context) ([]event.LeaderboardEntry, error) {
	start := time.Now()
	result, err := r.breaker.Execute(func() (any, error) {
		return r.queryStandings(ctx)
	})
	metrics.LeaderboardRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return result.([]event.LeaderboardEntry), nil
}

type standingRow struct {
	teamName       string
	portfolioValue string
	gains          string
	trades         int
}

func (r *LeaderboardRepo) queryStandings(ctx context.Context) ([]event.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, leaderboardQuery, r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var ordered []standingRow
	for rows.Next() {
		var row standingRow
		if err := rows.Scan(&row.teamName, &row.portfolioValue, &row.gains, &row.trades); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		ordered = append(ordered, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}

	return assignRanks(ordered), nil
}

// assignRanks maps rows, already in standings order, to entries ranked 1..N.
func assignRanks(ordered []standingRow) []event.LeaderboardEntry {
	entries := make([]event.LeaderboardEntry, 0, len(ordered))
	for i, row := range ordered {
		entries = append(entries, event.LeaderboardEntry{
			Rank:           i + 1,
			TeamName:       row.teamName,
			PortfolioValue: row.portfolioValue,
			Gains:          row.gains,
			Trades:         row.trades,
		})
	}
	return entries
}
