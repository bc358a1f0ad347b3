package models

import (
	"fmt"
	"strings"
)

// FeedKind is one of the fixed categories of tracked data.
type FeedKind string

const (
	KindDrugPrice        FeedKind = "drug_price"
	KindClinicalTrial    FeedKind = "clinical_trial"
	KindRegulatoryUpdate FeedKind = "regulatory_update"
	KindTreatmentOutcome FeedKind = "treatment_outcome"
)

// FeedKinds lists every supported kind.
var FeedKinds = []FeedKind{KindDrugPrice, KindClinicalTrial, KindRegulatoryUpdate, KindTreatmentOutcome}

// Valid reports whether k is a known feed kind.
func (k FeedKind) Valid() bool {
	for _, known := range FeedKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Slug is the hyphenated form used in submission routes, e.g. drug-price.
func (k FeedKind) Slug() string {
	return strings.ReplaceAll(string(k), "_", "-")
}

// ParseFeedKind accepts a kind in either its canonical or its slug form.
func ParseFeedKind(s string) (FeedKind, bool) {
	for _, k := range FeedKinds {
		if s == string(k) || s == k.Slug() {
			return k, true
		}
	}
	return "", false
}

// FeedKey identifies one discrete topic being tracked.
type FeedKey struct {
	Kind   FeedKind `json:"kind"`
	FeedID string   `json:"feed_id"`
}

func (k FeedKey) String() string {
	return fmt.Sprintf("%s/%s", k.Kind, k.FeedID)
}
