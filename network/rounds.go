package network

import (
	"errors"
	"fmt"

	"oracle-network/logger"
	"oracle-network/models"
	"oracle-network/repository"

	"go.uber.org/zap"
)

// activeRound returns the open round of a feed. It fails with
// ErrRoundNotFound when no round was ever opened and with
// ErrAlreadyFinalized when the latest round is closed.
func activeRound(tx *repository.Tx, key models.FeedKey) (*models.AggregationRound, error) {
	latest, err := tx.RoundCounter(key)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, fmt.Errorf("%w: %s has no rounds", ErrRoundNotFound, key)
	}
	round, err := tx.GetRound(key, latest)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s round %d", ErrRoundNotFound, key, latest)
	}
	if err != nil {
		return nil, err
	}
	if round.Finalized {
		return nil, fmt.Errorf("%w: %s round %d", ErrAlreadyFinalized, key, latest)
	}
	return round, nil
}

// ensureActiveRound returns the open round of a feed, opening the next one
// when none is open.
func (n *Network) ensureActiveRound(tx *repository.Tx, key models.FeedKey) (*models.AggregationRound, error) {
	round, err := activeRound(tx, key)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, ErrRoundNotFound) && !errors.Is(err, ErrAlreadyFinalized) {
		return nil, err
	}

	latest, err := tx.RoundCounter(key)
	if err != nil {
		return nil, err
	}
	round = &models.AggregationRound{
		Key:       key,
		RoundID:   latest + 1,
		StartedAt: n.now(),
	}
	if err := tx.PutRoundCounter(key, round.RoundID); err != nil {
		return nil, err
	}
	if err := tx.PutRound(round); err != nil {
		return nil, err
	}

	logger.Logger.Info("Round opened", zap.Stringer("feed", key), zap.Uint64("round_id", round.RoundID))
	return round, nil
}

// ActiveRoundID returns the id of the open round of a feed.
func (n *Network) ActiveRoundID(key models.FeedKey) (uint64, error) {
	var id uint64
	err := n.view(func(tx *repository.Tx) error {
		round, err := activeRound(tx, key)
		if err != nil {
			return err
		}
		id = round.RoundID
		return nil
	})
	return id, err
}

// Round returns one round of a feed, open or finalized.
func (n *Network) Round(key models.FeedKey, roundID uint64) (*models.AggregationRound, error) {
	var round *models.AggregationRound
	err := n.view(func(tx *repository.Tx) error {
		var err error
		round, err = tx.GetRound(key, roundID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s round %d", ErrRoundNotFound, key, roundID)
		}
		return err
	})
	return round, err
}
