package storage

import (
	"context"
	"fmt"
	"time"
)

// RecordVote inserts a vote. A zero CreatedAt is stamped with the current time.
func (db *DB) RecordVote(ctx context.Context, v Vote) error {
	if v.Label != 0 && v.Label != 1 {
		return fmt.Errorf("invalid vote label %d", v.Label)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO feedback_votes (session_id, query_text, match_code, match_text, label, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.conn.ExecContext(ctx, query,
		v.SessionID, v.QueryText, v.MatchCode, v.MatchText, v.Label, v.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

// CountVotes returns the number of votes in the ledger.
func (db *DB) CountVotes(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_votes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

// TallyByCode returns like/dislike totals for one course code.
func (db *DB) TallyByCode(ctx context.Context, code string) (VoteTally, error) {
	query := `
	SELECT COALESCE(SUM(label), 0), COALESCE(SUM(1 - label), 0)
	FROM feedback_votes WHERE match_code = ?
	`
	tally := VoteTally{MatchCode: code}
	if err := db.conn.QueryRowContext(ctx, query, code).Scan(&tally.Likes, &tally.Dislikes); err != nil {
		return VoteTally{}, fmt.Errorf("failed to tally votes for %s: %w", code, err)
	}
	return tally, nil
}

// DeleteOlderThan removes votes recorded before now-retention and returns
// how many were removed.
func (db *DB) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := db.conn.ExecContext(ctx, `DELETE FROM feedback_votes WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old votes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted rows: %w", err)
	}
	return n, nil
}
