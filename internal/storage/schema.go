package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return createFeedbackVotesTable(ctx, db)
}

func createFeedbackVotesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS feedback_votes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		match_code TEXT NOT NULL,
		match_text TEXT NOT NULL,
		label INTEGER NOT NULL CHECK(label IN (0, 1)),
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_votes_code ON feedback_votes(match_code);
	CREATE INDEX IF NOT EXISTS idx_feedback_votes_created_at ON feedback_votes(created_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create feedback_votes table: %w", err)
	}

	return nil
}
