package network

import (
	"errors"
	"fmt"

	"oracle-network/aggregation"
	"oracle-network/logger"
	"oracle-network/metrics"
	"oracle-network/models"
	"oracle-network/repository"
	"oracle-network/reputation"

	"go.uber.org/zap"
)

// finalization is what a committed finalize reports afterwards.
type finalization struct {
	record      *models.ConsensusRecord
	adjustments map[string]int64
}

func (f *finalization) report() {
	metrics.RecordFinalization(string(f.record.Key.Kind), f.record.ConfidenceBps)
	for op, delta := range f.adjustments {
		metrics.RecordReputationAdjustment(delta)
		if delta < 0 {
			logger.Logger.Warn("Oracle penalized for deviating from consensus",
				zap.String("operator", op),
				zap.Stringer("feed", f.record.Key),
				zap.Int64("delta", delta))
		}
	}
	logger.Logger.Info("Consensus finalized",
		zap.Stringer("feed", f.record.Key),
		zap.Uint64("round_id", f.record.RoundID),
		zap.Strings("submitters", f.record.Submitters),
		zap.Uint32("confidence_bps", f.record.ConfidenceBps))
}

// finalize aggregates the eligible submissions of an open round into the
// feed's consensus record, closes the round and settles reputation.
func (n *Network) finalize(tx *repository.Tx, cfg *models.NetworkConfig, round *models.AggregationRound) (*finalization, error) {
	key := round.Key
	ops, err := tx.Operators()
	if err != nil {
		return nil, err
	}

	var (
		contribs []aggregation.Contribution
		nodes    []*models.OracleNode
	)
	for _, op := range ops {
		node, err := getOracle(tx, op)
		if err != nil {
			return nil, err
		}
		if !node.Eligible(cfg.MinReputation) {
			continue
		}
		sub, err := tx.GetSubmission(key, round.RoundID, op)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		contribs = append(contribs, aggregation.Contribution{
			Operator: op,
			Weight:   aggregation.Weight(node.Reputation),
			Payload:  sub.Payload,
		})
		nodes = append(nodes, node)
	}

	if len(contribs) < int(cfg.MinSubmissions) {
		return nil, fmt.Errorf("%w: %s round %d has %d eligible of %d required",
			ErrInsufficientSubmissions, key, round.RoundID, len(contribs), cfg.MinSubmissions)
	}

	payload, err := aggregation.Aggregate(key, contribs)
	if err != nil {
		return nil, err
	}

	now := n.now()
	record := &models.ConsensusRecord{
		Key:           key,
		Payload:       payload,
		RoundID:       round.RoundID,
		FinalizedAt:   now,
		Submitters:    make([]string, 0, len(contribs)),
		ConfidenceBps: aggregation.Confidence(len(contribs), len(ops)),
	}
	for _, c := range contribs {
		record.Submitters = append(record.Submitters, c.Operator)
	}
	if err := tx.PutConsensus(record); err != nil {
		return nil, err
	}

	round.Finalized = true
	round.FinalizedAt = now
	if err := tx.PutRound(round); err != nil {
		return nil, err
	}

	adjustments := make(map[string]int64, len(contribs))
	for i, c := range contribs {
		delta := reputation.Assess(c.Payload, payload)
		reputation.Apply(nodes[i], delta, now)
		if err := tx.PutOracle(nodes[i]); err != nil {
			return nil, err
		}
		adjustments[c.Operator] = delta
	}

	return &finalization{record: record, adjustments: adjustments}, nil
}

// Finalize closes the open round of a feed on demand. It succeeds only when
// the round already holds enough eligible submissions.
func (n *Network) Finalize(key models.FeedKey) (*models.ConsensusRecord, error) {
	var fin *finalization
	err := n.update(func(tx *repository.Tx) error {
		cfg, err := requireConfig(tx)
		if err != nil {
			return err
		}
		round, err := activeRound(tx, key)
		if err != nil {
			return err
		}
		fin, err = n.finalize(tx, cfg, round)
		return err
	})
	if err != nil {
		return nil, err
	}

	fin.report()
	return fin.record, nil
}

// Consensus returns the latest consensus record of a feed.
func (n *Network) Consensus(key models.FeedKey) (*models.ConsensusRecord, error) {
	var record *models.ConsensusRecord
	err := n.view(func(tx *repository.Tx) error {
		var err error
		record, err = tx.GetConsensus(key)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrConsensusNotFound, key)
		}
		return err
	})
	return record, err
}
