package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"oracle-network/db"
	"oracle-network/models"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// ErrNotFound is returned when a key holds no value.
var ErrNotFound = errors.New("not found")

// KV abstracts the storage layer from the business logic
type KV interface {
	Get(key []byte) ([]byte, error)
	Write(batch *leveldb.Batch) error
	NewIterator(prefix []byte) iterator.Iterator
}

// Key layout. Every lookup is a direct key access except dispute listing.
const (
	keyConfig         = "config"
	keyOperators      = "oracles"
	keyDisputeCounter = "dispute_counter"
	prefixOracle      = "oracle:"
	prefixRoundCount  = "round_counter:"
	prefixRound       = "round:"
	prefixSubmission  = "submission:"
	prefixConsensus   = "consensus:"
	prefixDispute     = "dispute:"
)

func feedPart(k models.FeedKey) string {
	return string(k.Kind) + ":" + strconv.Itoa(len(k.FeedID)) + ":" + k.FeedID
}

func oracleKey(op string) string { return prefixOracle + op }

func roundCounterKey(k models.FeedKey) string { return prefixRoundCount + feedPart(k) }

func roundKey(k models.FeedKey, round uint64) string {
	return fmt.Sprintf("%s%s:%020d", prefixRound, feedPart(k), round)
}

func submissionKey(k models.FeedKey, round uint64, op string) string {
	return fmt.Sprintf("%s%s:%020d:%s", prefixSubmission, feedPart(k), round, op)
}

func consensusKey(k models.FeedKey) string { return prefixConsensus + feedPart(k) }

func disputeKey(id uint64) string { return fmt.Sprintf("%s%020d", prefixDispute, id) }

// Repository stores oracle network state as JSON values in a flat key space.
type Repository struct {
	kv KV
}

// NewRepository creates and returns a new Repository instance
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// Begin starts a unit of work. Reads observe the unit's own pending writes;
// nothing reaches the store until Commit.
func (r *Repository) Begin() *Tx {
	return &Tx{
		kv:      r.kv,
		batch:   new(leveldb.Batch),
		pending: make(map[string][]byte),
	}
}

// ListDisputes returns every committed dispute in id order.
func (r *Repository) ListDisputes() ([]*models.Dispute, error) {
	iter := r.kv.NewIterator([]byte(prefixDispute))
	defer iter.Release()

	var disputes []*models.Dispute
	for iter.Next() {
		var d models.Dispute
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			return nil, err
		}
		disputes = append(disputes, &d)
	}
	return disputes, iter.Error()
}

// Tx is a write set layered over the store.
type Tx struct {
	kv      KV
	batch   *leveldb.Batch
	pending map[string][]byte
}

func (t *Tx) get(key string, v interface{}) error {
	data, ok := t.pending[key]
	if !ok {
		var err error
		data, err = t.kv.Get([]byte(key))
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(data, v)
}

func (t *Tx) put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.pending[key] = data
	t.batch.Put([]byte(key), data)
	return nil
}

// Commit writes every pending value in one atomic batch.
func (t *Tx) Commit() error {
	if t.batch.Len() == 0 {
		return nil
	}
	return t.kv.Write(t.batch)
}

func (t *Tx) GetConfig() (*models.NetworkConfig, error) {
	var cfg models.NetworkConfig
	if err := t.get(keyConfig, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (t *Tx) PutConfig(cfg *models.NetworkConfig) error {
	return t.put(keyConfig, cfg)
}

func (t *Tx) GetOracle(op string) (*models.OracleNode, error) {
	var n models.OracleNode
	if err := t.get(oracleKey(op), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (t *Tx) PutOracle(n *models.OracleNode) error {
	return t.put(oracleKey(n.Operator), n)
}

// Operators returns every registered operator in registration order.
func (t *Tx) Operators() ([]string, error) {
	var ops []string
	err := t.get(keyOperators, &ops)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ops, err
}

func (t *Tx) PutOperators(ops []string) error {
	return t.put(keyOperators, ops)
}

// RoundCounter returns the latest round id of a feed, 0 if none was opened.
func (t *Tx) RoundCounter(k models.FeedKey) (uint64, error) {
	var n uint64
	err := t.get(roundCounterKey(k), &n)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return n, err
}

func (t *Tx) PutRoundCounter(k models.FeedKey, n uint64) error {
	return t.put(roundCounterKey(k), n)
}

func (t *Tx) GetRound(k models.FeedKey, round uint64) (*models.AggregationRound, error) {
	var r models.AggregationRound
	if err := t.get(roundKey(k, round), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *Tx) PutRound(r *models.AggregationRound) error {
	return t.put(roundKey(r.Key, r.RoundID), r)
}

func (t *Tx) GetSubmission(k models.FeedKey, round uint64, op string) (*models.Submission, error) {
	var s models.Submission
	if err := t.get(submissionKey(k, round, op), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *Tx) PutSubmission(s *models.Submission) error {
	return t.put(submissionKey(s.Key, s.RoundID, s.Operator), s)
}

func (t *Tx) GetConsensus(k models.FeedKey) (*models.ConsensusRecord, error) {
	var c models.ConsensusRecord
	if err := t.get(consensusKey(k), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *Tx) PutConsensus(c *models.ConsensusRecord) error {
	return t.put(consensusKey(c.Key), c)
}

func (t *Tx) DisputeCounter() (uint64, error) {
	var n uint64
	err := t.get(keyDisputeCounter, &n)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return n, err
}

func (t *Tx) PutDisputeCounter(n uint64) error {
	return t.put(keyDisputeCounter, n)
}

func (t *Tx) GetDispute(id uint64) (*models.Dispute, error) {
	var d models.Dispute
	if err := t.get(disputeKey(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *Tx) PutDispute(d *models.Dispute) error {
	return t.put(disputeKey(d.ID), d)
}
