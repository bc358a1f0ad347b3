package models

// OracleNode is one registered reporter.
type OracleNode struct {
	Operator        string `json:"operator"`
	Endpoint        string `json:"endpoint"`
	SourceType      string `json:"source_type"`
	Verified        bool   `json:"verified"`   // admin-gated
	Active          bool   `json:"active"`     // cleared on deactivation, never deleted
	Reputation      int64  `json:"reputation"` // floor 0
	SubmissionCount uint64 `json:"submission_count"`
	DisputeCount    uint64 `json:"dispute_count"`
	RegisteredAt    int64  `json:"registered_at"` // unix ms
	LastSeen        int64  `json:"last_seen"`     // unix ms
}

// Eligible reports whether the node may contribute to a consensus.
func (n *OracleNode) Eligible(minReputation int64) bool {
	return n.Verified && n.Active && n.Reputation >= minReputation
}
