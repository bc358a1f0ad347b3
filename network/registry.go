package network

import (
	"errors"
	"fmt"

	"oracle-network/logger"
	"oracle-network/models"
	"oracle-network/repository"
	"oracle-network/reputation"

	"go.uber.org/zap"
)

func getOracle(tx *repository.Tx, operator string) (*models.OracleNode, error) {
	node, err := tx.GetOracle(operator)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOracleNotFound, operator)
	}
	return node, err
}

// RegisterOracle creates an unverified, active node for operator.
func (n *Network) RegisterOracle(operator, endpoint, sourceType string) (*models.OracleNode, error) {
	if operator == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}

	var node *models.OracleNode
	err := n.update(func(tx *repository.Tx) error {
		_, err := tx.GetOracle(operator)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, operator)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := n.now()
		node = &models.OracleNode{
			Operator:     operator,
			Endpoint:     endpoint,
			SourceType:   sourceType,
			Active:       true,
			Reputation:   reputation.DefaultReputation,
			RegisteredAt: now,
			LastSeen:     now,
		}
		if err := tx.PutOracle(node); err != nil {
			return err
		}

		ops, err := tx.Operators()
		if err != nil {
			return err
		}
		return tx.PutOperators(append(ops, operator))
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Oracle registered",
		zap.String("operator", operator),
		zap.String("endpoint", endpoint),
		zap.String("source_type", sourceType))
	return node, nil
}

// VerifyOracle sets the verified and active flags of a node. Admin only.
func (n *Network) VerifyOracle(caller, operator string, verified, active bool) (*models.OracleNode, error) {
	var node *models.OracleNode
	err := n.update(func(tx *repository.Tx) error {
		if _, err := requireAdmin(tx, caller); err != nil {
			return err
		}
		var err error
		node, err = getOracle(tx, operator)
		if err != nil {
			return err
		}
		node.Verified = verified
		node.Active = active
		node.LastSeen = n.now()
		return tx.PutOracle(node)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Oracle verification changed",
		zap.String("operator", operator),
		zap.Bool("verified", verified),
		zap.Bool("active", active))
	return node, nil
}

// UpdateOracleEndpoint changes the endpoint of the caller's own node.
func (n *Network) UpdateOracleEndpoint(caller, operator, endpoint string) (*models.OracleNode, error) {
	if caller == "" || caller != operator {
		return nil, fmt.Errorf("%w: only %q may update its endpoint", ErrUnauthorized, operator)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}

	var node *models.OracleNode
	err := n.update(func(tx *repository.Tx) error {
		var err error
		node, err = getOracle(tx, operator)
		if err != nil {
			return err
		}
		node.Endpoint = endpoint
		node.LastSeen = n.now()
		return tx.PutOracle(node)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Oracle endpoint updated", zap.String("operator", operator), zap.String("endpoint", endpoint))
	return node, nil
}

// Oracle returns one registered node.
func (n *Network) Oracle(operator string) (*models.OracleNode, error) {
	var node *models.OracleNode
	err := n.view(func(tx *repository.Tx) error {
		var err error
		node, err = getOracle(tx, operator)
		return err
	})
	return node, err
}

// Operators lists every registered operator in registration order.
func (n *Network) Operators() ([]string, error) {
	var ops []string
	err := n.view(func(tx *repository.Tx) error {
		var err error
		ops, err = tx.Operators()
		return err
	})
	return ops, err
}

// Oracles returns every registered node in registration order.
func (n *Network) Oracles() ([]*models.OracleNode, error) {
	var nodes []*models.OracleNode
	err := n.view(func(tx *repository.Tx) error {
		ops, err := tx.Operators()
		if err != nil {
			return err
		}
		nodes = make([]*models.OracleNode, 0, len(ops))
		for _, op := range ops {
			node, err := getOracle(tx, op)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}
