package network

import (
	"fmt"
	"strings"

	"oracle-network/models"
)

const maxBps = 10000

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}

func validateFeedID(id string) error {
	if id == "" {
		return invalid("feed id is required")
	}
	if len(id) > MaxFeedIDLength {
		return invalid("feed id longer than %d bytes", MaxFeedIDLength)
	}
	// feed ids are addressed as a single path segment
	if strings.Contains(id, "/") {
		return invalid("feed id must not contain '/'")
	}
	return nil
}

func validateBps(field string, v uint32) error {
	if v > maxBps {
		return invalid("%s must be <= %d bps, got %d", field, maxBps, v)
	}
	return nil
}

// validatePayload applies the bound checks of the payload's feed kind.
func validatePayload(cfg *models.NetworkConfig, p models.Payload) error {
	key, ok := p.Key()
	if !ok {
		return invalid("payload does not carry a %q body", p.Kind)
	}
	if err := validateFeedID(key.FeedID); err != nil {
		return err
	}
	if p.Timestamp() < 0 {
		return invalid("timestamp must not be negative")
	}

	switch p.Kind {
	case models.KindDrugPrice:
		return validateDrugPrice(cfg, p.DrugPrice)
	case models.KindClinicalTrial:
		return validateClinicalTrial(p.ClinicalTrial)
	case models.KindRegulatoryUpdate:
		return validateRegulatoryUpdate(p.RegulatoryUpdate)
	case models.KindTreatmentOutcome:
		return validateTreatmentOutcome(p.TreatmentOutcome)
	}
	return invalid("unknown feed kind %q", p.Kind)
}

func validateDrugPrice(cfg *models.NetworkConfig, v *models.DrugPrice) error {
	if v.Price <= 0 {
		return invalid("price must be positive")
	}
	if v.Price > cfg.MaxPrice {
		return invalid("price %d exceeds ceiling %d", v.Price, cfg.MaxPrice)
	}
	if v.Currency == "" {
		return invalid("currency is required")
	}
	return validateBps("discount_bps", v.DiscountBps)
}

func validateClinicalTrial(v *models.ClinicalTrial) error {
	if v.Phase < 1 || v.Phase > 4 {
		return invalid("phase must be 1..4, got %d", v.Phase)
	}
	if err := validateBps("success_rate_bps", v.SuccessRateBps); err != nil {
		return err
	}
	if err := validateBps("adverse_event_rate_bps", v.AdverseEventRateBps); err != nil {
		return err
	}
	if v.ResultHash == "" {
		return invalid("result_hash is required")
	}
	if v.PublishedAt < 0 {
		return invalid("published_at must not be negative")
	}
	return nil
}

func validateRegulatoryUpdate(v *models.RegulatoryUpdate) error {
	if v.Agency == "" {
		return invalid("agency is required")
	}
	if v.DrugID == "" {
		return invalid("drug_id is required")
	}
	if !v.Status.Valid() {
		return invalid("unknown regulatory status %q", v.Status)
	}
	if v.DocumentHash == "" {
		return invalid("document_hash is required")
	}
	return nil
}

func validateTreatmentOutcome(v *models.TreatmentOutcome) error {
	if v.TreatmentCode == "" {
		return invalid("treatment_code is required")
	}
	if v.PatientCount == 0 {
		return invalid("patient_count must be positive")
	}
	if err := validateBps("success_rate_bps", v.SuccessRateBps); err != nil {
		return err
	}
	return validateBps("readmission_rate_bps", v.ReadmissionRateBps)
}
