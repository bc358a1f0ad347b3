package models

// AggregationRound is one collection window of a feed.
type AggregationRound struct {
	Key             FeedKey `json:"key"`
	RoundID         uint64  `json:"round_id"` // monotonic per feed, starts at 1
	StartedAt       int64   `json:"started_at"`
	Finalized       bool    `json:"finalized"`
	FinalizedAt     int64   `json:"finalized_at,omitempty"`
	SubmissionCount uint32  `json:"submission_count"`
}

// Submission is a write-once report of one operator in one round.
type Submission struct {
	Key         FeedKey `json:"key"`
	RoundID     uint64  `json:"round_id"`
	Operator    string  `json:"operator"`
	Payload     Payload `json:"payload"`
	SubmittedAt int64   `json:"submitted_at"`
}

// ConsensusRecord is the latest aggregated value of a feed.
type ConsensusRecord struct {
	Key           FeedKey  `json:"key"`
	Payload       Payload  `json:"payload"`
	RoundID       uint64   `json:"round_id"`
	FinalizedAt   int64    `json:"finalized_at"`
	Submitters    []string `json:"submitters"`
	ConfidenceBps uint32   `json:"confidence_bps"` // 0..10000
	Disputed      bool     `json:"disputed"`
}
