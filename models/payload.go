package models

// DrugPrice is an observed market price for one drug.
type DrugPrice struct {
	DrugID        string `json:"drug_id"`        // feed id
	Price         int64  `json:"price"`          // minor currency units
	Currency      string `json:"currency"`       // ISO 4217 code
	DiscountBps   uint32 `json:"discount_bps"`   // average discount off list price
	PharmacyCount uint32 `json:"pharmacy_count"` // pharmacies sampled
	Source        string `json:"source"`
	Timestamp     int64  `json:"timestamp"` // unix ms of observation
	Signature     string `json:"signature"`
}

// ClinicalTrial is a reported state of one clinical trial.
type ClinicalTrial struct {
	TrialID             string `json:"trial_id"` // feed id
	Phase               uint32 `json:"phase"`    // 1..4
	Enrollment          uint32 `json:"enrollment"`
	SuccessRateBps      uint32 `json:"success_rate_bps"`
	AdverseEventRateBps uint32 `json:"adverse_event_rate_bps"`
	ResultHash          string `json:"result_hash"`
	PublishedAt         int64  `json:"published_at"` // unix ms
	Timestamp           int64  `json:"timestamp"`
	Signature           string `json:"signature"`
}

// RegulatoryStatus is the categorical outcome of a regulatory decision.
type RegulatoryStatus string

const (
	StatusPending   RegulatoryStatus = "pending"
	StatusApproved  RegulatoryStatus = "approved"
	StatusRejected  RegulatoryStatus = "rejected"
	StatusWithdrawn RegulatoryStatus = "withdrawn"
	StatusRecalled  RegulatoryStatus = "recalled"
)

// Valid reports whether s is a known status.
func (s RegulatoryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn, StatusRecalled:
		return true
	}
	return false
}

// RegulatoryUpdate is a regulatory status change for a drug.
type RegulatoryUpdate struct {
	UpdateID     string           `json:"update_id"` // feed id
	Agency       string           `json:"agency"`
	DrugID       string           `json:"drug_id"`
	Status       RegulatoryStatus `json:"status"`
	DocumentHash string           `json:"document_hash"`
	EffectiveAt  int64            `json:"effective_at"`
	Timestamp    int64            `json:"timestamp"`
	Signature    string           `json:"signature"`
}

// TreatmentOutcome aggregates observed outcomes of one treatment.
type TreatmentOutcome struct {
	OutcomeID          string `json:"outcome_id"` // feed id
	TreatmentCode      string `json:"treatment_code"`
	PatientCount       uint32 `json:"patient_count"`
	SuccessRateBps     uint32 `json:"success_rate_bps"`
	ReadmissionRateBps uint32 `json:"readmission_rate_bps"`
	AvgRecoveryDays    uint32 `json:"avg_recovery_days"`
	Timestamp          int64  `json:"timestamp"`
	Signature          string `json:"signature"`
}

// Payload is a closed tagged union over the four feed kinds. Exactly the
// field matching Kind is set.
type Payload struct {
	Kind             FeedKind          `json:"kind"`
	DrugPrice        *DrugPrice        `json:"drug_price,omitempty"`
	ClinicalTrial    *ClinicalTrial    `json:"clinical_trial,omitempty"`
	RegulatoryUpdate *RegulatoryUpdate `json:"regulatory_update,omitempty"`
	TreatmentOutcome *TreatmentOutcome `json:"treatment_outcome,omitempty"`
}

func DrugPricePayload(v DrugPrice) Payload {
	return Payload{Kind: KindDrugPrice, DrugPrice: &v}
}

func ClinicalTrialPayload(v ClinicalTrial) Payload {
	return Payload{Kind: KindClinicalTrial, ClinicalTrial: &v}
}

func RegulatoryUpdatePayload(v RegulatoryUpdate) Payload {
	return Payload{Kind: KindRegulatoryUpdate, RegulatoryUpdate: &v}
}

func TreatmentOutcomePayload(v TreatmentOutcome) Payload {
	return Payload{Kind: KindTreatmentOutcome, TreatmentOutcome: &v}
}

// Key returns the feed the payload reports on. The second result is false
// when Kind does not match the populated variant.
func (p Payload) Key() (FeedKey, bool) {
	switch p.Kind {
	case KindDrugPrice:
		if p.DrugPrice != nil {
			return FeedKey{Kind: p.Kind, FeedID: p.DrugPrice.DrugID}, true
		}
	case KindClinicalTrial:
		if p.ClinicalTrial != nil {
			return FeedKey{Kind: p.Kind, FeedID: p.ClinicalTrial.TrialID}, true
		}
	case KindRegulatoryUpdate:
		if p.RegulatoryUpdate != nil {
			return FeedKey{Kind: p.Kind, FeedID: p.RegulatoryUpdate.UpdateID}, true
		}
	case KindTreatmentOutcome:
		if p.TreatmentOutcome != nil {
			return FeedKey{Kind: p.Kind, FeedID: p.TreatmentOutcome.OutcomeID}, true
		}
	}
	return FeedKey{}, false
}

// Timestamp returns the observation time carried by the payload.
func (p Payload) Timestamp() int64 {
	switch p.Kind {
	case KindDrugPrice:
		return p.DrugPrice.Timestamp
	case KindClinicalTrial:
		return p.ClinicalTrial.Timestamp
	case KindRegulatoryUpdate:
		return p.RegulatoryUpdate.Timestamp
	case KindTreatmentOutcome:
		return p.TreatmentOutcome.Timestamp
	}
	return 0
}

// StampIfUnset fills a zero observation time with ts.
func (p *Payload) StampIfUnset(ts int64) {
	if p.Timestamp() != 0 {
		return
	}
	switch p.Kind {
	case KindDrugPrice:
		p.DrugPrice.Timestamp = ts
	case KindClinicalTrial:
		p.ClinicalTrial.Timestamp = ts
	case KindRegulatoryUpdate:
		p.RegulatoryUpdate.Timestamp = ts
	case KindTreatmentOutcome:
		p.TreatmentOutcome.Timestamp = ts
	}
}
