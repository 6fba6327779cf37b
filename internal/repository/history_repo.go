package repository

import (
	"context"
	"fmt"
	"time"

	"reflexduel/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepository mirrors finished matches and resolved rounds into
// Postgres for history and leaderboard queries. Writes are idempotent, so a
// replayed mirror call is harmless.
type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordRounds stores one row per player of a resolved round.
func (r *HistoryRepository) RecordRounds(ctx context.Context, entries map[string]domain.LogEntry) error {
	batch := &pgx.Batch{}
	for playerID, e := range entries {
		var choice *string
		if e.Choice != "" {
			c := string(e.Choice)
			choice = &c
		}
		batch.Queue(
			`INSERT INTO round_logs
				(match_id, player_id, round, target, choice, reaction_ms, outcome, logged_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (match_id, player_id, round) DO NOTHING`,
			e.MatchID, playerID, e.Round, string(e.Target), choice, e.ReactionMs, string(e.Outcome), e.Timestamp,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert round logs: %w", err)
	}
	return nil
}

// RecordArchive stores the summary of a finished match.
func (r *HistoryRepository) RecordArchive(ctx context.Context, s domain.ArchiveSummary) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO match_archives
			(match_id, player_a, player_b, winner, reason, final_score, total_rounds, created_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (match_id) DO NOTHING`,
		s.MatchID, s.Players[0], s.Players[1], s.Winner, string(s.Reason),
		s.FinalScore, s.TotalRounds, s.CreatedAt, s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert archive %s: %w", s.MatchID, err)
	}
	return nil
}

// PlayerStats is a player's record over a period.
type PlayerStats struct {
	PlayerID      string  `json:"player_id"`
	Matches       int     `json:"matches"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Forfeits      int     `json:"forfeits"`
	Rounds        int     `json:"rounds"`
	RoundsWon     int     `json:"rounds_won"`
	AvgReactionMs float64 `json:"avg_reaction_ms"`
}

// Stats aggregates a player's matches and rounds since the given time.
func (r *HistoryRepository) Stats(ctx context.Context, playerID string, since time.Time) (*PlayerStats, error) {
	st := &PlayerStats{PlayerID: playerID}

	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE winner = $1),
			COUNT(*) FILTER (WHERE winner <> $1),
			COUNT(*) FILTER (WHERE winner <> $1 AND reason IN ('forfeit', 'give_up'))
		 FROM match_archives
		 WHERE (player_a = $1 OR player_b = $1) AND finished_at >= $2`,
		playerID, since,
	).Scan(&st.Matches, &st.Wins, &st.Losses, &st.Forfeits)
	if err != nil {
		return nil, fmt.Errorf("match stats: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'win'),
			COALESCE(AVG(reaction_ms) FILTER (WHERE choice IS NOT NULL), 0)
		 FROM round_logs
		 WHERE player_id = $1 AND logged_at >= $2`,
		playerID, since,
	).Scan(&st.Rounds, &st.RoundsWon, &st.AvgReactionMs)
	if err != nil {
		return nil, fmt.Errorf("round stats: %w", err)
	}
	return st, nil
}

// LeaderboardRow is one line of the leaderboard.
type LeaderboardRow struct {
	PlayerID string `json:"player_id"`
	Wins     int    `json:"wins"`
	Matches  int    `json:"matches"`
}

// Leaderboard ranks players by match wins since the given time.
func (r *HistoryRepository) Leaderboard(ctx context.Context, since time.Time, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`WITH played AS (
			SELECT player_a AS player_id, winner FROM match_archives WHERE finished_at >= $1
			UNION ALL
			SELECT player_b, winner FROM match_archives WHERE finished_at >= $1
		 )
		 SELECT player_id,
			COUNT(*) FILTER (WHERE winner = player_id) AS wins,
			COUNT(*) AS matches
		 FROM played
		 GROUP BY player_id
		 ORDER BY wins DESC, matches ASC, player_id
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.PlayerID, &row.Wins, &row.Matches); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RecentRounds returns a player's latest round logs, newest first.
func (r *HistoryRepository) RecentRounds(ctx context.Context, playerID string, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT match_id, round, target, COALESCE(choice, ''), reaction_ms, outcome, logged_at
		 FROM round_logs
		 WHERE player_id = $1
		 ORDER BY logged_at DESC, round DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var (
			e                       domain.LogEntry
			target, choice, outcome string
		)
		if err := rows.Scan(&e.MatchID, &e.Round, &target, &choice, &e.ReactionMs, &outcome, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Target = domain.Symbol(target)
		e.Choice = domain.Symbol(choice)
		e.Outcome = domain.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
