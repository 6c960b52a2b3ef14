package storage

import "time"

// Vote is one feedback vote mirrored from a successful API submission.
type Vote struct {
	SessionID string
	QueryText string
	MatchCode string
	MatchText string
	Label     int // 1 = like, 0 = dislike
	CreatedAt time.Time
}

// VoteTally sums the votes of one course code.
type VoteTally struct {
	MatchCode string
	Likes     int
	Dislikes  int
}
