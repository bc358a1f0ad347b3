package network

import (
	"errors"
	"fmt"

	"oracle-network/logger"
	"oracle-network/metrics"
	"oracle-network/models"
	"oracle-network/repository"
	"oracle-network/reputation"

	"go.uber.org/zap"
)

func getDispute(tx *repository.Tx, id uint64) (*models.Dispute, error) {
	d, err := tx.GetDispute(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDisputeNotFound, id)
	}
	return d, err
}

// RaiseDispute challenges the current consensus of a feed.
func (n *Network) RaiseDispute(challenger string, key models.FeedKey, reason string) (*models.Dispute, error) {
	if challenger == "" {
		return nil, fmt.Errorf("%w: challenger is required", ErrInvalidInput)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	var d *models.Dispute
	err := n.update(func(tx *repository.Tx) error {
		if _, err := requireConfig(tx); err != nil {
			return err
		}
		record, err := tx.GetConsensus(key)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrConsensusNotFound, key)
		}
		if err != nil {
			return err
		}
		if record.Disputed {
			return fmt.Errorf("%w: %s round %d", ErrAlreadyDisputed, key, record.RoundID)
		}

		last, err := tx.DisputeCounter()
		if err != nil {
			return err
		}
		d = &models.Dispute{
			ID:         last + 1,
			Key:        key,
			RoundID:    record.RoundID,
			Challenger: challenger,
			Reason:     reason,
			Status:     models.DisputeOpen,
			Submitters: append([]string(nil), record.Submitters...),
			CreatedAt:  n.now(),
		}
		if err := tx.PutDisputeCounter(d.ID); err != nil {
			return err
		}
		return tx.PutDispute(d)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDispute(string(d.Status))
	logger.Logger.Info("Dispute raised",
		zap.Uint64("dispute_id", d.ID),
		zap.Stringer("feed", key),
		zap.Uint64("round_id", d.RoundID),
		zap.String("challenger", challenger))
	return d, nil
}

// ResolveDispute rules on an open dispute. Only the admin or an arbiter may
// rule. A valid challenge flags the consensus as disputed and penalizes the
// named operator, if any. An invalid challenge credits every contributor of
// the challenged round.
func (n *Network) ResolveDispute(resolver string, id uint64, valid bool, ruling, penalized string) (*models.Dispute, error) {
	var (
		d           *models.Dispute
		adjustments = make(map[string]int64)
	)
	err := n.update(func(tx *repository.Tx) error {
		cfg, err := requireConfig(tx)
		if err != nil {
			return err
		}
		if resolver == "" || !cfg.CanResolve(resolver) {
			return fmt.Errorf("%w: %q is neither admin nor arbiter", ErrUnauthorized, resolver)
		}
		if ruling == "" {
			return fmt.Errorf("%w: ruling is required", ErrInvalidInput)
		}
		d, err = getDispute(tx, id)
		if err != nil {
			return err
		}
		if d.Status != models.DisputeOpen {
			return fmt.Errorf("%w: %d is %s", ErrDisputeResolved, id, d.Status)
		}

		now := n.now()
		if valid {
			record, err := tx.GetConsensus(d.Key)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			// a newer round's consensus is not the one under challenge
			if err == nil && record.RoundID == d.RoundID {
				record.Disputed = true
				if err := tx.PutConsensus(record); err != nil {
					return err
				}
			}
			if penalized != "" {
				node, err := getOracle(tx, penalized)
				if err != nil {
					return err
				}
				reputation.Apply(node, reputation.DisputePenalty, now)
				if err := tx.PutOracle(node); err != nil {
					return err
				}
				adjustments[penalized] = reputation.DisputePenalty
			}
			d.Status = models.DisputeResolvedValid
			d.Penalized = penalized
		} else {
			for _, op := range d.Submitters {
				node, err := getOracle(tx, op)
				if err != nil {
					return err
				}
				reputation.Apply(node, reputation.InvalidDisputeCredit, now)
				if err := tx.PutOracle(node); err != nil {
					return err
				}
				adjustments[op] = reputation.InvalidDisputeCredit
			}
			d.Status = models.DisputeResolvedInvalid
		}

		d.Resolver = resolver
		d.Ruling = ruling
		d.ResolvedAt = now
		return tx.PutDispute(d)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDispute(string(d.Status))
	for _, delta := range adjustments {
		metrics.RecordReputationAdjustment(delta)
	}
	logger.Logger.Info("Dispute resolved",
		zap.Uint64("dispute_id", id),
		zap.String("status", string(d.Status)),
		zap.String("resolver", resolver),
		zap.String("penalized", penalized))
	return d, nil
}

// Dispute returns one dispute by id.
func (n *Network) Dispute(id uint64) (*models.Dispute, error) {
	var d *models.Dispute
	err := n.view(func(tx *repository.Tx) error {
		var err error
		d, err = getDispute(tx, id)
		return err
	})
	return d, err
}

// Disputes returns every dispute in id order.
func (n *Network) Disputes() ([]*models.Dispute, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.repo.ListDisputes()
}
