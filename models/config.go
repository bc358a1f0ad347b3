package models

// NetworkConfig holds the global thresholds and privileged accounts.
type NetworkConfig struct {
	Admin          string   `json:"admin"`
	Arbiters       []string `json:"arbiters"`
	MinSubmissions uint32   `json:"min_submissions"`
	MinReputation  int64    `json:"min_reputation"`
	MaxPrice       int64    `json:"max_price"`
	InitializedAt  int64    `json:"initialized_at"`
}

// CanResolve reports whether account may rule on disputes.
func (c *NetworkConfig) CanResolve(account string) bool {
	if account == c.Admin {
		return true
	}
	for _, a := range c.Arbiters {
		if a == account {
			return true
		}
	}
	return false
}
