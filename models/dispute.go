package models

type DisputeStatus string

const (
	DisputeOpen            DisputeStatus = "open"
	DisputeResolvedValid   DisputeStatus = "resolved_valid"
	DisputeResolvedInvalid DisputeStatus = "resolved_invalid"
)

// Dispute is a challenge raised against a finalized consensus.
type Dispute struct {
	ID         uint64        `json:"id"`
	Key        FeedKey       `json:"key"`
	RoundID    uint64        `json:"round_id"`
	Challenger string        `json:"challenger"`
	Reason     string        `json:"reason"`
	Status     DisputeStatus `json:"status"`
	Submitters []string      `json:"submitters"` // contributors of the challenged round
	CreatedAt  int64         `json:"created_at"`
	ResolvedAt int64         `json:"resolved_at,omitempty"`
	Resolver   string        `json:"resolver,omitempty"`
	Ruling     string        `json:"ruling,omitempty"`
	Penalized  string        `json:"penalized,omitempty"`
}
