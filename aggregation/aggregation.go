// Package aggregation turns the eligible submissions of a closed round into a
// single consensus payload.
//
// Numeric feeds use a reputation-weighted mean truncated toward zero.
// Content that cannot be averaged is resolved by most-recent-wins (trial
// results) or highest-weight-wins (regulatory status).
package aggregation

import (
	"errors"
	"fmt"

	"oracle-network/models"

	"github.com/holiman/uint256"
)

// MaxConfidenceBps is full participation of every registered oracle.
const MaxConfidenceBps = 10000

var (
	ErrNoContributions = errors.New("no contributions to aggregate")
	ErrKindMismatch    = errors.New("contribution kind does not match feed")
)

// Contribution is one eligible submission together with its weight.
type Contribution struct {
	Operator string
	Weight   uint64
	Payload  models.Payload
}

// Weight maps a reputation onto an aggregation weight. Zero reputation
// still counts minimally.
func Weight(reputation int64) uint64 {
	if reputation < 1 {
		return 1
	}
	return uint64(reputation)
}

// Confidence is the share of registered oracles that contributed, in basis points.
func Confidence(submitters, registered int) uint32 {
	if registered <= 0 || submitters <= 0 {
		return 0
	}
	c := MulDiv(uint64(submitters), MaxConfidenceBps, uint64(registered))
	if c > MaxConfidenceBps {
		return MaxConfidenceBps
	}
	return uint32(c)
}

// MulDiv computes a*b/c without intermediate overflow. The result saturates
// at the maximum uint64.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Div(z, uint256.NewInt(c))
	if !z.IsUint64() {
		return ^uint64(0)
	}
	return z.Uint64()
}

// WeightedMean returns floor(Σ value·weight / Σ weight) over the
// contributions, taking each value from field.
func WeightedMean(contribs []Contribution, field func(models.Payload) uint64) uint64 {
	sum := new(uint256.Int)
	total := new(uint256.Int)
	for _, c := range contribs {
		w := uint256.NewInt(c.Weight)
		sum.Add(sum, new(uint256.Int).Mul(uint256.NewInt(field(c.Payload)), w))
		total.Add(total, w)
	}
	if total.IsZero() {
		return 0
	}
	return sum.Div(sum, total).Uint64()
}

// Aggregate computes the consensus payload of one feed.
func Aggregate(key models.FeedKey, contribs []Contribution) (models.Payload, error) {
	if len(contribs) == 0 {
		return models.Payload{}, ErrNoContributions
	}
	for _, c := range contribs {
		if _, ok := c.Payload.Key(); !ok || c.Payload.Kind != key.Kind {
			return models.Payload{}, fmt.Errorf("%w: %s submitted %s to %s", ErrKindMismatch, c.Operator, c.Payload.Kind, key)
		}
	}

	switch key.Kind {
	case models.KindDrugPrice:
		return models.DrugPricePayload(aggregateDrugPrice(key.FeedID, contribs)), nil
	case models.KindClinicalTrial:
		return models.ClinicalTrialPayload(aggregateClinicalTrial(key.FeedID, contribs)), nil
	case models.KindRegulatoryUpdate:
		return models.RegulatoryUpdatePayload(aggregateRegulatoryUpdate(key.FeedID, contribs)), nil
	case models.KindTreatmentOutcome:
		return models.TreatmentOutcomePayload(aggregateTreatmentOutcome(key.FeedID, contribs)), nil
	}
	return models.Payload{}, fmt.Errorf("%w: unknown kind %q", ErrKindMismatch, key.Kind)
}

func latest(contribs []Contribution) int64 {
	var ts int64
	for _, c := range contribs {
		if t := c.Payload.Timestamp(); t > ts {
			ts = t
		}
	}
	return ts
}

// firstNonEmpty returns the first non-empty string field among contributions.
func firstNonEmpty(contribs []Contribution, field func(models.Payload) string) string {
	for _, c := range contribs {
		if v := field(c.Payload); v != "" {
			return v
		}
	}
	return ""
}

func aggregateDrugPrice(feedID string, contribs []Contribution) models.DrugPrice {
	return models.DrugPrice{
		DrugID:        feedID,
		Price:         int64(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.DrugPrice.Price) })),
		Currency:      firstNonEmpty(contribs, func(p models.Payload) string { return p.DrugPrice.Currency }),
		DiscountBps:   uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.DrugPrice.DiscountBps) })),
		PharmacyCount: uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.DrugPrice.PharmacyCount) })),
		Source:        firstNonEmpty(contribs, func(p models.Payload) string { return p.DrugPrice.Source }),
		Timestamp:     latest(contribs),
	}
}

func aggregateClinicalTrial(feedID string, contribs []Contribution) models.ClinicalTrial {
	out := models.ClinicalTrial{
		TrialID:             feedID,
		Phase:               uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.ClinicalTrial.Phase) })),
		Enrollment:          uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.ClinicalTrial.Enrollment) })),
		SuccessRateBps:      uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.ClinicalTrial.SuccessRateBps) })),
		AdverseEventRateBps: uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.ClinicalTrial.AdverseEventRateBps) })),
		Timestamp:           latest(contribs),
	}

	// most recent publication wins; the first seen keeps a tie
	newest := contribs[0].Payload.ClinicalTrial
	for _, c := range contribs[1:] {
		if c.Payload.ClinicalTrial.PublishedAt > newest.PublishedAt {
			newest = c.Payload.ClinicalTrial
		}
	}
	out.ResultHash = newest.ResultHash
	out.PublishedAt = newest.PublishedAt
	return out
}

func aggregateRegulatoryUpdate(feedID string, contribs []Contribution) models.RegulatoryUpdate {
	best := contribs[0]
	for _, c := range contribs[1:] {
		if c.Weight > best.Weight {
			best = c
		}
	}
	out := *best.Payload.RegulatoryUpdate
	out.UpdateID = feedID
	return out
}

func aggregateTreatmentOutcome(feedID string, contribs []Contribution) models.TreatmentOutcome {
	return models.TreatmentOutcome{
		OutcomeID:          feedID,
		TreatmentCode:      firstNonEmpty(contribs, func(p models.Payload) string { return p.TreatmentOutcome.TreatmentCode }),
		PatientCount:       uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.TreatmentOutcome.PatientCount) })),
		SuccessRateBps:     uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.TreatmentOutcome.SuccessRateBps) })),
		ReadmissionRateBps: uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.TreatmentOutcome.ReadmissionRateBps) })),
		AvgRecoveryDays:    uint32(WeightedMean(contribs, func(p models.Payload) uint64 { return uint64(p.TreatmentOutcome.AvgRecoveryDays) })),
		Timestamp:          latest(contribs),
	}
}
