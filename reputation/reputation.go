// Package reputation scores each contributor against the consensus it helped
// produce and applies the resulting reward or penalty.
package reputation

import (
	"oracle-network/aggregation"
	"oracle-network/models"
)

const (
	// DefaultReputation is assigned on registration.
	DefaultReputation int64 = 50

	// Drug price: percentage deviation from consensus in basis points.
	PriceToleranceBps = 500
	PriceReward       = 5
	PricePenalty      = -3

	// Clinical trial and treatment outcome: absolute deviation of the
	// success rate in basis points.
	RateToleranceBps = 700
	RateReward       = 4
	RatePenalty      = -2

	// Regulatory update: exact status match.
	StatusReward  = 4
	StatusPenalty = -4

	// MismatchPenalty applies when a submission's kind differs from the consensus.
	MismatchPenalty = -5

	// DisputePenalty is charged to the operator named in a valid dispute ruling.
	DisputePenalty = -15
	// InvalidDisputeCredit is paid to every contributor of a wrongly challenged round.
	InvalidDisputeCredit = 2
)

// Assess returns the reputation delta earned by submitted given the consensus.
func Assess(submitted, consensus models.Payload) int64 {
	if _, ok := submitted.Key(); !ok || submitted.Kind != consensus.Kind {
		return MismatchPenalty
	}
	if _, ok := consensus.Key(); !ok {
		return MismatchPenalty
	}

	switch submitted.Kind {
	case models.KindDrugPrice:
		if PriceDeviationBps(submitted.DrugPrice.Price, consensus.DrugPrice.Price) <= PriceToleranceBps {
			return PriceReward
		}
		return PricePenalty
	case models.KindClinicalTrial:
		return rateDelta(submitted.ClinicalTrial.SuccessRateBps, consensus.ClinicalTrial.SuccessRateBps)
	case models.KindTreatmentOutcome:
		return rateDelta(submitted.TreatmentOutcome.SuccessRateBps, consensus.TreatmentOutcome.SuccessRateBps)
	case models.KindRegulatoryUpdate:
		if submitted.RegulatoryUpdate.Status == consensus.RegulatoryUpdate.Status {
			return StatusReward
		}
		return StatusPenalty
	}
	return MismatchPenalty
}

// PriceDeviationBps is |value-reference| relative to reference, in basis
// points. A non-positive reference yields the maximum deviation.
func PriceDeviationBps(value, reference int64) uint64 {
	if reference <= 0 {
		return ^uint64(0)
	}
	diff := value - reference
	if diff < 0 {
		diff = -diff
	}
	return aggregation.MulDiv(uint64(diff), 10000, uint64(reference))
}

func rateDelta(value, reference uint32) int64 {
	diff := int64(value) - int64(reference)
	if diff < 0 {
		diff = -diff
	}
	if diff <= RateToleranceBps {
		return RateReward
	}
	return RatePenalty
}

// Apply adds delta to the node's reputation, saturating at zero, and
// refreshes its last-seen time. Negative deltas count as disputes.
func Apply(node *models.OracleNode, delta int64, now int64) {
	node.Reputation += delta
	if node.Reputation < 0 {
		node.Reputation = 0
	}
	if delta < 0 {
		node.DisputeCount++
	}
	node.LastSeen = now
}
