package network

import (
	"errors"
	"fmt"

	"oracle-network/logger"
	"oracle-network/metrics"
	"oracle-network/models"
	"oracle-network/repository"

	"go.uber.org/zap"
)

// SubmitResult reports where a submission landed.
type SubmitResult struct {
	Key       models.FeedKey          `json:"key"`
	RoundID   uint64                  `json:"round_id"`
	Finalized bool                    `json:"finalized"`
	Consensus *models.ConsensusRecord `json:"consensus,omitempty"`
}

func (n *Network) SubmitDrugPrice(operator string, v models.DrugPrice) (*SubmitResult, error) {
	return n.Submit(operator, models.DrugPricePayload(v))
}

func (n *Network) SubmitClinicalTrial(operator string, v models.ClinicalTrial) (*SubmitResult, error) {
	return n.Submit(operator, models.ClinicalTrialPayload(v))
}

func (n *Network) SubmitRegulatoryUpdate(operator string, v models.RegulatoryUpdate) (*SubmitResult, error) {
	return n.Submit(operator, models.RegulatoryUpdatePayload(v))
}

func (n *Network) SubmitTreatmentOutcome(operator string, v models.TreatmentOutcome) (*SubmitResult, error) {
	return n.Submit(operator, models.TreatmentOutcomePayload(v))
}

// Submit records one report of a verified, active operator into the open
// round of the payload's feed. The submission that brings the round to the
// minimum count finalizes it in the same unit of work.
func (n *Network) Submit(operator string, payload models.Payload) (*SubmitResult, error) {
	var (
		res *SubmitResult
		fin *finalization
	)
	err := n.update(func(tx *repository.Tx) error {
		cfg, err := requireConfig(tx)
		if err != nil {
			return err
		}
		node, err := getOracle(tx, operator)
		if err != nil {
			return err
		}
		if !node.Verified {
			return fmt.Errorf("%w: %s", ErrNotVerified, operator)
		}
		if !node.Active {
			return fmt.Errorf("%w: %s", ErrInactive, operator)
		}
		if err := validatePayload(cfg, payload); err != nil {
			return err
		}
		key, _ := payload.Key()

		round, err := n.ensureActiveRound(tx, key)
		if err != nil {
			return err
		}
		_, err = tx.GetSubmission(key, round.RoundID, operator)
		if err == nil {
			return fmt.Errorf("%w: %s already reported %s round %d", ErrDuplicateSubmission, operator, key, round.RoundID)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := n.now()
		payload.StampIfUnset(now)
		if err := tx.PutSubmission(&models.Submission{
			Key:         key,
			RoundID:     round.RoundID,
			Operator:    operator,
			Payload:     payload,
			SubmittedAt: now,
		}); err != nil {
			return err
		}

		round.SubmissionCount++
		if err := tx.PutRound(round); err != nil {
			return err
		}
		node.SubmissionCount++
		node.LastSeen = now
		if err := tx.PutOracle(node); err != nil {
			return err
		}

		res = &SubmitResult{Key: key, RoundID: round.RoundID}
		if round.SubmissionCount < cfg.MinSubmissions {
			return nil
		}

		fin, err = n.finalize(tx, cfg, round)
		if errors.Is(err, ErrInsufficientSubmissions) {
			// some submitters fell below eligibility; keep collecting
			logger.Logger.Debug("Round stays open", zap.Stringer("feed", key), zap.Error(err))
			fin = nil
			return nil
		}
		if err != nil {
			return err
		}
		res.Finalized = true
		res.Consensus = fin.record
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSubmission(string(res.Key.Kind))
	logger.Logger.Info("Submission accepted",
		zap.String("operator", operator),
		zap.Stringer("feed", res.Key),
		zap.Uint64("round_id", res.RoundID))
	if fin != nil {
		fin.report()
	}
	return res, nil
}

// Submission returns the write-once report of operator in a round.
func (n *Network) Submission(key models.FeedKey, roundID uint64, operator string) (*models.Submission, error) {
	var sub *models.Submission
	err := n.view(func(tx *repository.Tx) error {
		var err error
		sub, err = tx.GetSubmission(key, roundID, operator)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s in %s round %d", ErrSubmissionNotFound, operator, key, roundID)
		}
		return err
	})
	return sub, err
}
