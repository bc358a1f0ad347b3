// Package network is the core of the oracle network: reporter registry,
// collection rounds, submission validation, consensus finalization,
// reputation incentives and dispute resolution.
//
// Every exported mutation runs as one unit of work: its writes are staged in
// a repository.Tx and committed as a single LevelDB batch, or not at all.
// Mutations are serialized by one lock. Reputation is shared across feeds,
// so a finalization on one feed and a dispute or finalization on another can
// touch the same oracle record.
package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"oracle-network/logger"
	"oracle-network/models"
	"oracle-network/repository"

	"go.uber.org/zap"
)

const (
	DefaultMinReputation int64 = 10
	DefaultMaxPrice      int64 = 1_000_000_000_000
	MaxFeedIDLength            = 128
)

// Network owns all oracle network state.
type Network struct {
	repo *repository.Repository
	mu   sync.RWMutex
	now  func() int64
}

// Option configures a Network.
type Option func(*Network)

// WithClock replaces the wall clock, in unix milliseconds.
func WithClock(now func() int64) Option {
	return func(n *Network) { n.now = now }
}

func New(repo *repository.Repository, opts ...Option) *Network {
	n := &Network{repo: repo, now: nowMillis}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// update runs fn as one atomic unit of work.
func (n *Network) update(fn func(tx *repository.Tx) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	tx := n.repo.Begin()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (n *Network) view(fn func(tx *repository.Tx) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fn(n.repo.Begin())
}

func requireConfig(tx *repository.Tx) (*models.NetworkConfig, error) {
	cfg, err := tx.GetConfig()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	return cfg, err
}

func requireAdmin(tx *repository.Tx, caller string) (*models.NetworkConfig, error) {
	cfg, err := requireConfig(tx)
	if err != nil {
		return nil, err
	}
	if caller == "" || caller != cfg.Admin {
		return nil, fmt.Errorf("%w: %q is not admin", ErrUnauthorized, caller)
	}
	return cfg, nil
}

// Thresholds are the tunable limits seeded at initialization.
type Thresholds struct {
	MinSubmissions uint32
	MinReputation  int64
	MaxPrice       int64
}

func (th Thresholds) validate() error {
	if th.MinSubmissions < 1 {
		return fmt.Errorf("%w: min_submissions must be >= 1", ErrInvalidInput)
	}
	if th.MinReputation < 0 {
		return fmt.Errorf("%w: min_reputation must be >= 0", ErrInvalidInput)
	}
	if th.MaxPrice <= 0 {
		return fmt.Errorf("%w: max_price must be > 0", ErrInvalidInput)
	}
	return nil
}

// Initialize creates the network configuration with default reputation and
// price limits. It succeeds only once.
func (n *Network) Initialize(admin string, arbiters []string, minSubmissions uint32) (*models.NetworkConfig, error) {
	return n.InitializeWithThresholds(admin, arbiters, Thresholds{
		MinSubmissions: minSubmissions,
		MinReputation:  DefaultMinReputation,
		MaxPrice:       DefaultMaxPrice,
	})
}

// InitializeWithThresholds creates the network configuration with every
// threshold set in the same unit of work. It succeeds only once.
func (n *Network) InitializeWithThresholds(admin string, arbiters []string, th Thresholds) (*models.NetworkConfig, error) {
	if admin == "" {
		return nil, fmt.Errorf("%w: admin is required", ErrInvalidInput)
	}
	if err := th.validate(); err != nil {
		return nil, err
	}

	var cfg *models.NetworkConfig
	err := n.update(func(tx *repository.Tx) error {
		_, err := tx.GetConfig()
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		cfg = &models.NetworkConfig{
			Admin:          admin,
			MinSubmissions: th.MinSubmissions,
			MinReputation:  th.MinReputation,
			MaxPrice:       th.MaxPrice,
			InitializedAt:  n.now(),
		}
		for _, a := range arbiters {
			cfg.Arbiters = appendUnique(cfg.Arbiters, a)
		}
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Network initialized",
		zap.String("admin", admin),
		zap.Strings("arbiters", cfg.Arbiters),
		zap.Uint32("min_submissions", cfg.MinSubmissions),
		zap.Int64("min_reputation", cfg.MinReputation),
		zap.Int64("max_price", cfg.MaxPrice))
	return cfg, nil
}

// ConfigUpdate carries the thresholds to change; nil fields are kept.
type ConfigUpdate struct {
	MinSubmissions *uint32 `json:"min_submissions,omitempty"`
	MinReputation  *int64  `json:"min_reputation,omitempty"`
	MaxPrice       *int64  `json:"max_price,omitempty"`
}

// UpdateConfig changes global thresholds. Admin only.
func (n *Network) UpdateConfig(caller string, upd ConfigUpdate) (*models.NetworkConfig, error) {
	if upd.MinSubmissions != nil && *upd.MinSubmissions < 1 {
		return nil, fmt.Errorf("%w: min_submissions must be >= 1", ErrInvalidInput)
	}
	if upd.MinReputation != nil && *upd.MinReputation < 0 {
		return nil, fmt.Errorf("%w: min_reputation must be >= 0", ErrInvalidInput)
	}
	if upd.MaxPrice != nil && *upd.MaxPrice <= 0 {
		return nil, fmt.Errorf("%w: max_price must be > 0", ErrInvalidInput)
	}

	var cfg *models.NetworkConfig
	err := n.update(func(tx *repository.Tx) error {
		var err error
		cfg, err = requireAdmin(tx, caller)
		if err != nil {
			return err
		}
		if upd.MinSubmissions != nil {
			cfg.MinSubmissions = *upd.MinSubmissions
		}
		if upd.MinReputation != nil {
			cfg.MinReputation = *upd.MinReputation
		}
		if upd.MaxPrice != nil {
			cfg.MaxPrice = *upd.MaxPrice
		}
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Network config updated",
		zap.Uint32("min_submissions", cfg.MinSubmissions),
		zap.Int64("min_reputation", cfg.MinReputation),
		zap.Int64("max_price", cfg.MaxPrice))
	return cfg, nil
}

// AddArbiter authorizes another account to rule on disputes. Admin only.
func (n *Network) AddArbiter(caller, arbiter string) (*models.NetworkConfig, error) {
	if arbiter == "" {
		return nil, fmt.Errorf("%w: arbiter is required", ErrInvalidInput)
	}

	var cfg *models.NetworkConfig
	err := n.update(func(tx *repository.Tx) error {
		var err error
		cfg, err = requireAdmin(tx, caller)
		if err != nil {
			return err
		}
		cfg.Arbiters = appendUnique(cfg.Arbiters, arbiter)
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Arbiter added", zap.String("arbiter", arbiter))
	return cfg, nil
}

// Config returns the current network configuration.
func (n *Network) Config() (*models.NetworkConfig, error) {
	var cfg *models.NetworkConfig
	err := n.view(func(tx *repository.Tx) error {
		var err error
		cfg, err = requireConfig(tx)
		return err
	})
	return cfg, err
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// nowMillis returns current time in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
