package routers

import (
	"oracle-network/handlers"
	"oracle-network/metrics"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the oracle network
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Network configuration, created once and then admin-managed
	r.HandleFunc("/network/initialize", h.Initialize).Methods("POST")
	r.HandleFunc("/network/config", h.GetConfig).Methods("GET")
	r.HandleFunc("/network/config", h.UpdateConfig).Methods("PUT")
	r.HandleFunc("/network/arbiters", h.AddArbiter).Methods("POST")

	// Oracle registry
	r.HandleFunc("/oracles", h.RegisterOracle).Methods("POST")
	r.HandleFunc("/oracles", h.ListOracles).Methods("GET")
	r.HandleFunc("/oracles/{operator}", h.GetOracle).Methods("GET")
	r.HandleFunc("/oracles/{operator}/verification", h.VerifyOracle).Methods("PUT")
	r.HandleFunc("/oracles/{operator}/endpoint", h.UpdateOracleEndpoint).Methods("PUT")

	// One submission entry point per feed kind
	r.HandleFunc("/feeds/drug-price", h.SubmitDrugPrice).Methods("POST")
	r.HandleFunc("/feeds/clinical-trial", h.SubmitClinicalTrial).Methods("POST")
	r.HandleFunc("/feeds/regulatory-update", h.SubmitRegulatoryUpdate).Methods("POST")
	r.HandleFunc("/feeds/treatment-outcome", h.SubmitTreatmentOutcome).Methods("POST")

	// Rounds and consensus of one feed; {kind} takes drug_price or drug-price
	r.HandleFunc("/feeds/{kind}/{feed_id}/finalize", h.FinalizeFeed).Methods("POST")
	r.HandleFunc("/feeds/{kind}/{feed_id}/consensus", h.GetConsensus).Methods("GET")
	r.HandleFunc("/feeds/{kind}/{feed_id}/rounds/{round}", h.GetRound).Methods("GET")
	r.HandleFunc("/feeds/{kind}/{feed_id}/rounds/{round}/submissions/{operator}", h.GetSubmission).Methods("GET")

	// Dispute resolution
	r.HandleFunc("/disputes", h.RaiseDispute).Methods("POST")
	r.HandleFunc("/disputes", h.ListDisputes).Methods("GET")
	r.HandleFunc("/disputes/{id}", h.GetDispute).Methods("GET")
	r.HandleFunc("/disputes/{id}/resolve", h.ResolveDispute).Methods("POST")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
}
