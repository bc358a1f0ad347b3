package network

import (
	"sync"
	"sync/atomic"
	"testing"

	"oracle-network/db"
	"oracle-network/models"
	"oracle-network/repository"
	"oracle-network/reputation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const admin = "admin"

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	ldb, err := db.NewMemLevelDB(0)
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })

	var clock int64 = 1_700_000_000_000
	return New(repository.NewRepository(ldb), WithClock(func() int64 {
		return atomic.AddInt64(&clock, 1)
	}))
}

// setupOracles initializes the network and registers verified oracles with
// the given reputations.
func setupOracles(t *testing.T, n *Network, minSubmissions uint32, reps map[string]int64, order ...string) {
	t.Helper()
	_, err := n.Initialize(admin, []string{"arbiter"}, minSubmissions)
	require.NoError(t, err)
	for _, op := range order {
		_, err := n.RegisterOracle(op, "https://"+op+".example", "api")
		require.NoError(t, err)
		_, err = n.VerifyOracle(admin, op, true, true)
		require.NoError(t, err)
		setReputation(t, n, op, reps[op])
	}
}

func setReputation(t *testing.T, n *Network, op string, rep int64) {
	t.Helper()
	require.NoError(t, n.update(func(tx *repository.Tx) error {
		node, err := getOracle(tx, op)
		if err != nil {
			return err
		}
		node.Reputation = rep
		return tx.PutOracle(node)
	}))
}

func reputationOf(t *testing.T, n *Network, op string) int64 {
	t.Helper()
	node, err := n.Oracle(op)
	require.NoError(t, err)
	return node.Reputation
}

func price(id string, p int64) models.DrugPrice {
	return models.DrugPrice{DrugID: id, Price: p, Currency: "USD", Source: "pharmacy-survey", Signature: "sig"}
}

var drugKey = models.FeedKey{Kind: models.KindDrugPrice, FeedID: "ndc-0002-8215"}

func TestInitialize(t *testing.T) {
	n := newTestNetwork(t)

	_, err := n.Config()
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = n.Initialize("", nil, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.Initialize(admin, nil, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	cfg, err := n.Initialize(admin, []string{"arb", "arb", ""}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"arb"}, cfg.Arbiters)
	assert.Equal(t, DefaultMinReputation, cfg.MinReputation)
	assert.Equal(t, DefaultMaxPrice, cfg.MaxPrice)

	_, err = n.Initialize("other", nil, 1)
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	got, err := n.Config()
	require.NoError(t, err)
	assert.Equal(t, admin, got.Admin)
}

func TestInitializeWithThresholds(t *testing.T) {
	n := newTestNetwork(t)

	_, err := n.InitializeWithThresholds(admin, nil, Thresholds{MinSubmissions: 2, MinReputation: -1, MaxPrice: 10})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.InitializeWithThresholds(admin, nil, Thresholds{MinSubmissions: 2, MinReputation: 0, MaxPrice: 0})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.Config()
	require.ErrorIs(t, err, ErrNotInitialized)

	cfg, err := n.InitializeWithThresholds(admin, []string{"arb"}, Thresholds{MinSubmissions: 2, MinReputation: 25, MaxPrice: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(25), cfg.MinReputation)
	assert.Equal(t, int64(5000), cfg.MaxPrice)

	stored, err := n.Config()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stored.MinSubmissions)
	assert.Equal(t, int64(25), stored.MinReputation)
	assert.Equal(t, int64(5000), stored.MaxPrice)

	_, err = n.InitializeWithThresholds(admin, nil, Thresholds{MinSubmissions: 1, MaxPrice: 1})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestUpdateConfigAndArbiters(t *testing.T) {
	n := newTestNetwork(t)
	_, err := n.Initialize(admin, nil, 3)
	require.NoError(t, err)

	minSubs := uint32(2)
	_, err = n.UpdateConfig("mallory", ConfigUpdate{MinSubmissions: &minSubs})
	require.ErrorIs(t, err, ErrUnauthorized)

	zero := uint32(0)
	_, err = n.UpdateConfig(admin, ConfigUpdate{MinSubmissions: &zero})
	require.ErrorIs(t, err, ErrInvalidInput)

	ceiling := int64(500)
	cfg, err := n.UpdateConfig(admin, ConfigUpdate{MinSubmissions: &minSubs, MaxPrice: &ceiling})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), cfg.MinSubmissions)
	assert.Equal(t, int64(500), cfg.MaxPrice)
	assert.Equal(t, DefaultMinReputation, cfg.MinReputation)

	_, err = n.AddArbiter("mallory", "x")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = n.AddArbiter(admin, "judge")
	require.NoError(t, err)
	cfg, err = n.AddArbiter(admin, "judge")
	require.NoError(t, err)
	assert.Equal(t, []string{"judge"}, cfg.Arbiters)
}

func TestRegistry(t *testing.T) {
	n := newTestNetwork(t)
	_, err := n.Initialize(admin, nil, 1)
	require.NoError(t, err)

	_, err = n.RegisterOracle("op1", "", "api")
	require.ErrorIs(t, err, ErrInvalidInput)

	node, err := n.RegisterOracle("op1", "https://op1.example", "api")
	require.NoError(t, err)
	assert.False(t, node.Verified)
	assert.True(t, node.Active)
	assert.Equal(t, reputation.DefaultReputation, node.Reputation)

	_, err = n.RegisterOracle("op1", "https://other.example", "api")
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = n.VerifyOracle("op1", "op1", true, true)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = n.VerifyOracle(admin, "ghost", true, true)
	require.ErrorIs(t, err, ErrOracleNotFound)

	registeredAt := node.LastSeen
	node, err = n.VerifyOracle(admin, "op1", true, true)
	require.NoError(t, err)
	assert.True(t, node.Verified)
	assert.Greater(t, node.LastSeen, registeredAt)

	verifiedAt := node.LastSeen
	node, err = n.VerifyOracle(admin, "op1", true, false)
	require.NoError(t, err)
	assert.False(t, node.Active)
	assert.Greater(t, node.LastSeen, verifiedAt)
	_, err = n.VerifyOracle(admin, "op1", true, true)
	require.NoError(t, err)

	_, err = n.UpdateOracleEndpoint("op2", "op1", "https://evil.example")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = n.UpdateOracleEndpoint("ghost", "ghost", "https://ghost.example")
	require.ErrorIs(t, err, ErrOracleNotFound)
	node, err = n.UpdateOracleEndpoint("op1", "op1", "https://op1-new.example")
	require.NoError(t, err)
	assert.Equal(t, "https://op1-new.example", node.Endpoint)

	_, err = n.RegisterOracle("op2", "https://op2.example", "manual")
	require.NoError(t, err)
	ops, err := n.Operators()
	require.NoError(t, err)
	assert.Equal(t, []string{"op1", "op2"}, ops)

	nodes, err := n.Oracles()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "https://op1-new.example", nodes[0].Endpoint)
}

func TestSubmitRequiresVerifiedActiveOracle(t *testing.T) {
	n := newTestNetwork(t)
	_, err := n.SubmitDrugPrice("op1", price(drugKey.FeedID, 100))
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = n.Initialize(admin, nil, 1)
	require.NoError(t, err)

	_, err = n.SubmitDrugPrice("ghost", price(drugKey.FeedID, 100))
	require.ErrorIs(t, err, ErrOracleNotFound)

	_, err = n.RegisterOracle("op1", "https://op1.example", "api")
	require.NoError(t, err)
	_, err = n.SubmitDrugPrice("op1", price(drugKey.FeedID, 100))
	require.ErrorIs(t, err, ErrNotVerified)

	_, err = n.VerifyOracle(admin, "op1", true, false)
	require.NoError(t, err)
	_, err = n.SubmitDrugPrice("op1", price(drugKey.FeedID, 100))
	require.ErrorIs(t, err, ErrInactive)

	// rejected submissions leave no trace
	_, err = n.ActiveRoundID(drugKey)
	require.ErrorIs(t, err, ErrRoundNotFound)
	node, err := n.Oracle("op1")
	require.NoError(t, err)
	assert.Zero(t, node.SubmissionCount)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 3, map[string]int64{"a": 50, "b": 50}, "a", "b")

	res, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.RoundID)
	assert.False(t, res.Finalized)

	_, err = n.SubmitDrugPrice("a", price(drugKey.FeedID, 150))
	require.ErrorIs(t, err, ErrDuplicateSubmission)

	round, err := n.Round(drugKey, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), round.SubmissionCount)

	sub, err := n.Submission(drugKey, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), sub.Payload.DrugPrice.Price)
	assert.NotZero(t, sub.Payload.DrugPrice.Timestamp)

	node, err := n.Oracle("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), node.SubmissionCount)

	_, err = n.Submission(drugKey, 1, "b")
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmitValidation(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 5, map[string]int64{"a": 50}, "a")

	long := make([]byte, MaxFeedIDLength+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name    string
		payload models.Payload
	}{
		{"empty feed id", models.DrugPricePayload(price("", 100))},
		{"long feed id", models.DrugPricePayload(price(string(long), 100))},
		{"slash in feed id", models.DrugPricePayload(price("ndc/0002", 100))},
		{"zero price", models.DrugPricePayload(price("d", 0))},
		{"price above ceiling", models.DrugPricePayload(price("d", DefaultMaxPrice+1))},
		{"no currency", models.DrugPricePayload(models.DrugPrice{DrugID: "d", Price: 1})},
		{"discount over 100%", models.DrugPricePayload(models.DrugPrice{DrugID: "d", Price: 1, Currency: "USD", DiscountBps: 10001})},
		{"negative timestamp", models.DrugPricePayload(models.DrugPrice{DrugID: "d", Price: 1, Currency: "USD", Timestamp: -1})},
		{"phase 0", models.ClinicalTrialPayload(models.ClinicalTrial{TrialID: "t", Phase: 0, ResultHash: "h"})},
		{"phase 5", models.ClinicalTrialPayload(models.ClinicalTrial{TrialID: "t", Phase: 5, ResultHash: "h"})},
		{"trial rate", models.ClinicalTrialPayload(models.ClinicalTrial{TrialID: "t", Phase: 2, SuccessRateBps: 10001, ResultHash: "h"})},
		{"trial adverse rate", models.ClinicalTrialPayload(models.ClinicalTrial{TrialID: "t", Phase: 2, AdverseEventRateBps: 20000, ResultHash: "h"})},
		{"trial no hash", models.ClinicalTrialPayload(models.ClinicalTrial{TrialID: "t", Phase: 2})},
		{"reg no agency", models.RegulatoryUpdatePayload(models.RegulatoryUpdate{UpdateID: "r", DrugID: "d", Status: models.StatusApproved, DocumentHash: "h"})},
		{"reg bad status", models.RegulatoryUpdatePayload(models.RegulatoryUpdate{UpdateID: "r", Agency: "FDA", DrugID: "d", Status: "maybe", DocumentHash: "h"})},
		{"reg no hash", models.RegulatoryUpdatePayload(models.RegulatoryUpdate{UpdateID: "r", Agency: "FDA", DrugID: "d", Status: models.StatusApproved})},
		{"outcome no code", models.TreatmentOutcomePayload(models.TreatmentOutcome{OutcomeID: "o", PatientCount: 1})},
		{"outcome no patients", models.TreatmentOutcomePayload(models.TreatmentOutcome{OutcomeID: "o", TreatmentCode: "c"})},
		{"outcome rate", models.TreatmentOutcomePayload(models.TreatmentOutcome{OutcomeID: "o", TreatmentCode: "c", PatientCount: 1, ReadmissionRateBps: 10001})},
		{"kind without body", models.Payload{Kind: models.KindTreatmentOutcome}},
		{"unknown kind", models.Payload{Kind: "weather"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Submit("a", tt.payload)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	node, err := n.Oracle("a")
	require.NoError(t, err)
	assert.Zero(t, node.SubmissionCount)
}

func TestDrugPriceScenario(t *testing.T) {
	n := newTestNetwork(t)
	reps := map[string]int64{"a": 40, "b": 60, "c": 100}
	setupOracles(t, n, 3, reps, "a", "b", "c")

	res, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	assert.False(t, res.Finalized)
	res, err = n.SubmitDrugPrice("b", price(drugKey.FeedID, 102))
	require.NoError(t, err)
	assert.False(t, res.Finalized)
	res, err = n.SubmitDrugPrice("c", price(drugKey.FeedID, 98))
	require.NoError(t, err)
	require.True(t, res.Finalized)
	require.NotNil(t, res.Consensus)

	record, err := n.Consensus(drugKey)
	require.NoError(t, err)
	assert.Equal(t, int64(99), record.Payload.DrugPrice.Price)
	assert.Equal(t, "USD", record.Payload.DrugPrice.Currency)
	assert.Equal(t, uint32(10000), record.ConfidenceBps)
	assert.Equal(t, uint64(1), record.RoundID)
	assert.Equal(t, []string{"a", "b", "c"}, record.Submitters)
	assert.False(t, record.Disputed)

	round, err := n.Round(drugKey, 1)
	require.NoError(t, err)
	assert.True(t, round.Finalized)
	assert.Equal(t, uint32(3), round.SubmissionCount)

	// every price is within 5% of 99
	assert.Equal(t, int64(45), reputationOf(t, n, "a"))
	assert.Equal(t, int64(65), reputationOf(t, n, "b"))
	assert.Equal(t, int64(105), reputationOf(t, n, "c"))

	d, err := n.RaiseDispute("watchdog", drugKey, "price looks stale")
	require.NoError(t, err)
	assert.Equal(t, models.DisputeOpen, d.Status)
	assert.Equal(t, uint64(1), d.RoundID)

	d, err = n.ResolveDispute(admin, d.ID, false, "prices match pharmacy survey", "")
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedInvalid, d.Status)

	assert.Equal(t, int64(47), reputationOf(t, n, "a"))
	assert.Equal(t, int64(67), reputationOf(t, n, "b"))
	assert.Equal(t, int64(107), reputationOf(t, n, "c"))

	record, err = n.Consensus(drugKey)
	require.NoError(t, err)
	assert.False(t, record.Disputed)

	_, err = n.ResolveDispute(admin, d.ID, true, "changed my mind", "a")
	require.ErrorIs(t, err, ErrDisputeResolved)
	got, err := n.Dispute(d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedInvalid, got.Status)
	assert.Equal(t, int64(47), reputationOf(t, n, "a"))
}

func TestTreatmentOutcomeWeightedMean(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 2, map[string]int64{"a": 5000, "b": 5000}, "a", "b")

	key := models.FeedKey{Kind: models.KindTreatmentOutcome, FeedID: "knee-replacement"}
	outcome := func(rate uint32) models.TreatmentOutcome {
		return models.TreatmentOutcome{OutcomeID: key.FeedID, TreatmentCode: "CPT-27447", PatientCount: 120, SuccessRateBps: rate}
	}

	_, err := n.SubmitTreatmentOutcome("a", outcome(9000))
	require.NoError(t, err)
	res, err := n.SubmitTreatmentOutcome("b", outcome(8000))
	require.NoError(t, err)
	require.True(t, res.Finalized)
	assert.Equal(t, uint32(8500), res.Consensus.Payload.TreatmentOutcome.SuccessRateBps)

	// both are 500 bps away, inside the 700 bps band
	assert.Equal(t, int64(5004), reputationOf(t, n, "a"))
	assert.Equal(t, int64(5004), reputationOf(t, n, "b"))
}

func TestOutlierPenalized(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 3, map[string]int64{"a": 100, "b": 100, "c": 10}, "a", "b", "c")

	_, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 1000))
	require.NoError(t, err)
	_, err = n.SubmitDrugPrice("b", price(drugKey.FeedID, 1000))
	require.NoError(t, err)
	res, err := n.SubmitDrugPrice("c", price(drugKey.FeedID, 5000))
	require.NoError(t, err)
	require.True(t, res.Finalized)

	// (1000*100 + 1000*100 + 5000*10) / 210
	assert.Equal(t, int64(1190), res.Consensus.Payload.DrugPrice.Price)

	c, err := n.Oracle("c")
	require.NoError(t, err)
	assert.Equal(t, int64(10+reputation.PricePenalty), c.Reputation)
	assert.Equal(t, uint64(1), c.DisputeCount)
}

func TestRegulatoryUpdateConsensus(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 3, map[string]int64{"a": 40, "b": 60, "c": 100}, "a", "b", "c")

	key := models.FeedKey{Kind: models.KindRegulatoryUpdate, FeedID: "fda-2024-0042"}
	update := func(status models.RegulatoryStatus, hash string) models.RegulatoryUpdate {
		return models.RegulatoryUpdate{UpdateID: key.FeedID, Agency: "FDA", DrugID: "ndc-1", Status: status, DocumentHash: hash}
	}

	_, err := n.SubmitRegulatoryUpdate("a", update(models.StatusRejected, "h-a"))
	require.NoError(t, err)
	_, err = n.SubmitRegulatoryUpdate("b", update(models.StatusRejected, "h-b"))
	require.NoError(t, err)
	res, err := n.SubmitRegulatoryUpdate("c", update(models.StatusApproved, "h-c"))
	require.NoError(t, err)
	require.True(t, res.Finalized)

	ru := res.Consensus.Payload.RegulatoryUpdate
	assert.Equal(t, models.StatusApproved, ru.Status)
	assert.Equal(t, "h-c", ru.DocumentHash)

	assert.Equal(t, int64(40+reputation.StatusPenalty), reputationOf(t, n, "a"))
	assert.Equal(t, int64(60+reputation.StatusPenalty), reputationOf(t, n, "b"))
	assert.Equal(t, int64(100+reputation.StatusReward), reputationOf(t, n, "c"))
}

func TestClinicalTrialConsensus(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 2, map[string]int64{"a": 50, "b": 50}, "a", "b")

	key := models.FeedKey{Kind: models.KindClinicalTrial, FeedID: "NCT04368728"}
	_, err := n.SubmitClinicalTrial("a", models.ClinicalTrial{
		TrialID: key.FeedID, Phase: 3, Enrollment: 40000, SuccessRateBps: 9500, ResultHash: "early", PublishedAt: 10,
	})
	require.NoError(t, err)
	res, err := n.SubmitClinicalTrial("b", models.ClinicalTrial{
		TrialID: key.FeedID, Phase: 3, Enrollment: 44000, SuccessRateBps: 9100, ResultHash: "final", PublishedAt: 20,
	})
	require.NoError(t, err)
	require.True(t, res.Finalized)

	ct := res.Consensus.Payload.ClinicalTrial
	assert.Equal(t, uint32(42000), ct.Enrollment)
	assert.Equal(t, uint32(9300), ct.SuccessRateBps)
	assert.Equal(t, "final", ct.ResultHash)
	assert.Equal(t, int64(20), ct.PublishedAt)
}

func TestIneligibleSubmittersKeepRoundOpen(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 3, map[string]int64{"a": 50, "b": 50, "c": 5, "d": 50}, "a", "b", "c", "d")

	_, err := n.Finalize(drugKey)
	require.ErrorIs(t, err, ErrRoundNotFound)

	for _, op := range []string{"a", "b", "c"} {
		res, err := n.SubmitDrugPrice(op, price(drugKey.FeedID, 100))
		require.NoError(t, err)
		assert.False(t, res.Finalized)
	}

	_, err = n.Consensus(drugKey)
	require.ErrorIs(t, err, ErrConsensusNotFound)
	_, err = n.Finalize(drugKey)
	require.ErrorIs(t, err, ErrInsufficientSubmissions)

	id, err := n.ActiveRoundID(drugKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	minRep := int64(0)
	_, err = n.UpdateConfig(admin, ConfigUpdate{MinReputation: &minRep})
	require.NoError(t, err)

	record, err := n.Finalize(drugKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, record.Submitters)
	// three of four registered oracles took part
	assert.Equal(t, uint32(7500), record.ConfidenceBps)

	_, err = n.Finalize(drugKey)
	require.ErrorIs(t, err, ErrAlreadyFinalized)
	_, err = n.ActiveRoundID(drugKey)
	require.ErrorIs(t, err, ErrAlreadyFinalized)

	res, err := n.SubmitDrugPrice("d", price(drugKey.FeedID, 101))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.RoundID)
}

func TestDeactivatedOracleExcludedFromFinalization(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 2, map[string]int64{"a": 50, "b": 50, "c": 50}, "a", "b", "c")

	_, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	_, err = n.VerifyOracle(admin, "a", true, false)
	require.NoError(t, err)

	// two submissions, but only one from an eligible oracle
	res, err := n.SubmitDrugPrice("b", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	assert.False(t, res.Finalized)

	res, err = n.SubmitDrugPrice("c", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	require.True(t, res.Finalized)
	assert.Equal(t, uint64(1), res.RoundID)
	assert.Equal(t, []string{"b", "c"}, res.Consensus.Submitters)

	a, err := n.Oracle("a")
	require.NoError(t, err)
	assert.Equal(t, int64(50), a.Reputation)
}

func TestDisputeLifecycle(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 2, map[string]int64{"a": 50, "b": 50}, "a", "b")

	_, err := n.RaiseDispute("watchdog", drugKey, "no consensus yet")
	require.ErrorIs(t, err, ErrConsensusNotFound)

	_, err = n.SubmitDrugPrice("a", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	_, err = n.SubmitDrugPrice("b", price(drugKey.FeedID, 100))
	require.NoError(t, err)

	_, err = n.RaiseDispute("watchdog", drugKey, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	d, err := n.RaiseDispute("watchdog", drugKey, "source was a typo")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.ID)
	assert.Equal(t, []string{"a", "b"}, d.Submitters)

	_, err = n.ResolveDispute("watchdog", d.ID, true, "self ruling", "")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = n.ResolveDispute("watchdog", d.ID, true, "", "")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = n.ResolveDispute("arbiter", d.ID, true, "", "")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.ResolveDispute("arbiter", 99, true, "missing", "")
	require.ErrorIs(t, err, ErrDisputeNotFound)

	// unknown penalized operator aborts the whole ruling
	_, err = n.ResolveDispute("arbiter", d.ID, true, "a lied", "ghost")
	require.ErrorIs(t, err, ErrOracleNotFound)
	got, err := n.Dispute(d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeOpen, got.Status)
	record, err := n.Consensus(drugKey)
	require.NoError(t, err)
	assert.False(t, record.Disputed)

	before := reputationOf(t, n, "a")
	d, err = n.ResolveDispute("arbiter", d.ID, true, "a lied", "a")
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedValid, d.Status)
	assert.Equal(t, "arbiter", d.Resolver)
	assert.Equal(t, "a", d.Penalized)

	node, err := n.Oracle("a")
	require.NoError(t, err)
	assert.Equal(t, before+reputation.DisputePenalty, node.Reputation)
	assert.Equal(t, uint64(1), node.DisputeCount)

	record, err = n.Consensus(drugKey)
	require.NoError(t, err)
	assert.True(t, record.Disputed)

	_, err = n.RaiseDispute("watchdog", drugKey, "again")
	require.ErrorIs(t, err, ErrAlreadyDisputed)
	_, err = n.ResolveDispute(admin, d.ID, false, "retry", "")
	require.ErrorIs(t, err, ErrDisputeResolved)

	disputes, err := n.Disputes()
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	assert.Equal(t, models.DisputeResolvedValid, disputes[0].Status)
}

func TestDisputePenaltyFloorsAtZero(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 1, map[string]int64{"a": 20}, "a")

	_, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 100))
	require.NoError(t, err)

	first, err := n.RaiseDispute("w1", drugKey, "one")
	require.NoError(t, err)
	second, err := n.RaiseDispute("w2", drugKey, "two")
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)

	_, err = n.ResolveDispute(admin, first.ID, true, "bad", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(20+reputation.PriceReward+reputation.DisputePenalty), reputationOf(t, n, "a"))

	_, err = n.ResolveDispute(admin, second.ID, true, "bad again", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), reputationOf(t, n, "a"))
}

func TestValidDisputeDoesNotFlagNewerRound(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 1, map[string]int64{"a": 50}, "a")

	_, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 100))
	require.NoError(t, err)
	d, err := n.RaiseDispute("watchdog", drugKey, "round one was wrong")
	require.NoError(t, err)

	res, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, 110))
	require.NoError(t, err)
	require.True(t, res.Finalized)
	assert.Equal(t, uint64(2), res.RoundID)

	_, err = n.ResolveDispute(admin, d.ID, true, "round one was wrong", "")
	require.NoError(t, err)

	record, err := n.Consensus(drugKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), record.RoundID)
	assert.False(t, record.Disputed)
}

func TestConcurrentSubmissionsFinalizeOnce(t *testing.T) {
	n := newTestNetwork(t)
	ops := []string{"a", "b", "c", "d", "e"}
	reps := make(map[string]int64, len(ops))
	for _, op := range ops {
		reps[op] = 50
	}
	setupOracles(t, n, 3, reps, ops...)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		finalized []*SubmitResult
	)
	for _, op := range ops {
		wg.Add(1)
		go func(op string) {
			defer wg.Done()
			res, err := n.SubmitDrugPrice(op, price(drugKey.FeedID, 100))
			if !assert.NoError(t, err) {
				return
			}
			if res.Finalized {
				mu.Lock()
				finalized = append(finalized, res)
				mu.Unlock()
			}
		}(op)
	}
	wg.Wait()

	require.Len(t, finalized, 1)
	assert.Equal(t, uint64(1), finalized[0].RoundID)
	assert.Len(t, finalized[0].Consensus.Submitters, 3)

	first, err := n.Round(drugKey, 1)
	require.NoError(t, err)
	assert.True(t, first.Finalized)
	assert.Equal(t, uint32(3), first.SubmissionCount)

	second, err := n.Round(drugKey, 2)
	require.NoError(t, err)
	assert.False(t, second.Finalized)
	assert.Equal(t, uint32(2), second.SubmissionCount)

	record, err := n.Consensus(drugKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.RoundID)
}

func TestConcurrentDuplicateSubmissionsFromOneOperator(t *testing.T) {
	n := newTestNetwork(t)
	setupOracles(t, n, 3, map[string]int64{"a": 50}, "a")

	const attempts = 8
	var (
		wg         sync.WaitGroup
		accepted   int32
		duplicates int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := n.SubmitDrugPrice("a", price(drugKey.FeedID, int64(100+i)))
			switch {
			case err == nil:
				atomic.AddInt32(&accepted, 1)
			case assert.ErrorIs(t, err, ErrDuplicateSubmission):
				atomic.AddInt32(&duplicates, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted)
	assert.Equal(t, int32(attempts-1), duplicates)

	round, err := n.Round(drugKey, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), round.SubmissionCount)
	assert.False(t, round.Finalized)

	node, err := n.Oracle("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), node.SubmissionCount)
}
