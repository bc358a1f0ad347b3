package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"oracle-network/logger"
	"oracle-network/middleware"
	"oracle-network/models"
	"oracle-network/network"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handler contains the HTTP handlers for the oracle network API endpoints
type Handler struct {
	Network *network.Network
}

// NewHandler creates and returns a new Handler instance
func NewHandler(n *network.Network) *Handler {
	return &Handler{Network: n}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, network.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, network.ErrUnauthorized),
		errors.Is(err, network.ErrNotVerified),
		errors.Is(err, network.ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, network.ErrOracleNotFound),
		errors.Is(err, network.ErrRoundNotFound),
		errors.Is(err, network.ErrSubmissionNotFound),
		errors.Is(err, network.ErrConsensusNotFound),
		errors.Is(err, network.ErrDisputeNotFound):
		return http.StatusNotFound
	case errors.Is(err, network.ErrAlreadyInitialized),
		errors.Is(err, network.ErrAlreadyRegistered),
		errors.Is(err, network.ErrDuplicateSubmission),
		errors.Is(err, network.ErrAlreadyFinalized),
		errors.Is(err, network.ErrAlreadyDisputed),
		errors.Is(err, network.ErrDisputeResolved):
		return http.StatusConflict
	case errors.Is(err, network.ErrInsufficientSubmissions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, network.ErrNotInitialized):
		return http.StatusPreconditionFailed
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Logger.Error(msg, zap.Error(err))
	} else {
		logger.Logger.Debug(msg, zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Logger.Error("Failed to decode request", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		return false
	}
	return true
}

func caller(r *http.Request) string {
	return r.Header.Get(middleware.CallerHeader)
}

func feedKey(r *http.Request) (models.FeedKey, bool) {
	vars := mux.Vars(r)
	kind, ok := models.ParseFeedKind(vars["kind"])
	key := models.FeedKey{Kind: kind, FeedID: vars["feed_id"]}
	return key, ok && key.FeedID != ""
}

type initializeRequest struct {
	Admin          string   `json:"admin"`
	Arbiters       []string `json:"arbiters"`
	MinSubmissions uint32   `json:"min_submissions"`
}

// Initialize handles POST requests creating the network configuration
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.Network.Initialize(req.Admin, req.Arbiters, req.MinSubmissions)
	if err != nil {
		writeError(w, "Failed to initialize network", err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Network.Config()
	if err != nil {
		writeError(w, "Failed to get config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var upd network.ConfigUpdate
	if !decode(w, r, &upd) {
		return
	}
	cfg, err := h.Network.UpdateConfig(caller(r), upd)
	if err != nil {
		writeError(w, "Failed to update config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) AddArbiter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Arbiter string `json:"arbiter"`
	}
	if !decode(w, r, &req) {
		return
	}
	cfg, err := h.Network.AddArbiter(caller(r), req.Arbiter)
	if err != nil {
		writeError(w, "Failed to add arbiter", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// RegisterOracle registers the calling operator as a new, unverified oracle
func (h *Handler) RegisterOracle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint   string `json:"endpoint"`
		SourceType string `json:"source_type"`
	}
	if !decode(w, r, &req) {
		return
	}
	node, err := h.Network.RegisterOracle(caller(r), req.Endpoint, req.SourceType)
	if err != nil {
		writeError(w, "Failed to register oracle", err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (h *Handler) ListOracles(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.Network.Oracles()
	if err != nil {
		writeError(w, "Failed to list oracles", err)
		return
	}
	ops := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ops = append(ops, n.Operator)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operators": ops,
		"oracles":   nodes,
	})
}

func (h *Handler) GetOracle(w http.ResponseWriter, r *http.Request) {
	node, err := h.Network.Oracle(mux.Vars(r)["operator"])
	if err != nil {
		writeError(w, "Failed to get oracle", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// VerifyOracle lets the admin set the verified and active flags of an oracle
func (h *Handler) VerifyOracle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Verified bool `json:"verified"`
		Active   bool `json:"active"`
	}
	if !decode(w, r, &req) {
		return
	}
	node, err := h.Network.VerifyOracle(caller(r), mux.Vars(r)["operator"], req.Verified, req.Active)
	if err != nil {
		writeError(w, "Failed to verify oracle", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *Handler) UpdateOracleEndpoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if !decode(w, r, &req) {
		return
	}
	node, err := h.Network.UpdateOracleEndpoint(caller(r), mux.Vars(r)["operator"], req.Endpoint)
	if err != nil {
		writeError(w, "Failed to update endpoint", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, payload models.Payload) {
	res, err := h.Network.Submit(caller(r), payload)
	if err != nil {
		writeError(w, "Failed to submit report", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) SubmitDrugPrice(w http.ResponseWriter, r *http.Request) {
	var v models.DrugPrice
	if decode(w, r, &v) {
		h.submit(w, r, models.DrugPricePayload(v))
	}
}

func (h *Handler) SubmitClinicalTrial(w http.ResponseWriter, r *http.Request) {
	var v models.ClinicalTrial
	if decode(w, r, &v) {
		h.submit(w, r, models.ClinicalTrialPayload(v))
	}
}

func (h *Handler) SubmitRegulatoryUpdate(w http.ResponseWriter, r *http.Request) {
	var v models.RegulatoryUpdate
	if decode(w, r, &v) {
		h.submit(w, r, models.RegulatoryUpdatePayload(v))
	}
}

func (h *Handler) SubmitTreatmentOutcome(w http.ResponseWriter, r *http.Request) {
	var v models.TreatmentOutcome
	if decode(w, r, &v) {
		h.submit(w, r, models.TreatmentOutcomePayload(v))
	}
}

// FinalizeFeed closes the open round of a feed on demand
func (h *Handler) FinalizeFeed(w http.ResponseWriter, r *http.Request) {
	key, ok := feedKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown feed kind"})
		return
	}
	record, err := h.Network.Finalize(key)
	if err != nil {
		writeError(w, "Failed to finalize feed", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) GetConsensus(w http.ResponseWriter, r *http.Request) {
	key, ok := feedKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown feed kind"})
		return
	}
	record, err := h.Network.Consensus(key)
	if err != nil {
		writeError(w, "Failed to get consensus", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func roundID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["round"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid round id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	key, ok := feedKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown feed kind"})
		return
	}
	id, ok := roundID(w, r)
	if !ok {
		return
	}
	round, err := h.Network.Round(key, id)
	if err != nil {
		writeError(w, "Failed to get round", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	key, ok := feedKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown feed kind"})
		return
	}
	id, ok := roundID(w, r)
	if !ok {
		return
	}
	sub, err := h.Network.Submission(key, id, mux.Vars(r)["operator"])
	if err != nil {
		writeError(w, "Failed to get submission", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// RaiseDispute challenges the current consensus of a feed on behalf of the caller
func (h *Handler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   models.FeedKind `json:"kind"`
		FeedID string          `json:"feed_id"`
		Reason string          `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !req.Kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown feed kind"})
		return
	}
	d, err := h.Network.RaiseDispute(caller(r), models.FeedKey{Kind: req.Kind, FeedID: req.FeedID}, req.Reason)
	if err != nil {
		writeError(w, "Failed to raise dispute", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func disputeID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dispute id"})
		return 0, false
	}
	return id, true
}

// ResolveDispute lets the admin or an arbiter rule on an open dispute
func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := disputeID(w, r)
	if !ok {
		return
	}
	var req struct {
		Valid     bool   `json:"valid"`
		Ruling    string `json:"ruling"`
		Penalized string `json:"penalized"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := h.Network.ResolveDispute(caller(r), id, req.Valid, req.Ruling, req.Penalized)
	if err != nil {
		writeError(w, "Failed to resolve dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := disputeID(w, r)
	if !ok {
		return
	}
	d, err := h.Network.Dispute(id)
	if err != nil {
		writeError(w, "Failed to get dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := h.Network.Disputes()
	if err != nil {
		writeError(w, "Failed to list disputes", err)
		return
	}
	if disputes == nil {
		disputes = []*models.Dispute{}
	}
	writeJSON(w, http.StatusOK, disputes)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
