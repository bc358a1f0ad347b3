package network

import "errors"

// Configuration errors.
var (
	ErrNotInitialized     = errors.New("network not initialized")
	ErrAlreadyInitialized = errors.New("network already initialized")
)

// Authorization errors.
var ErrUnauthorized = errors.New("caller is not authorized")

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("oracle already registered")
	ErrOracleNotFound    = errors.New("oracle not found")
	ErrNotVerified       = errors.New("oracle not verified")
	ErrInactive          = errors.New("oracle inactive")
)

// Input errors.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

// Round and consensus errors.
var (
	ErrRoundNotFound           = errors.New("round not found")
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrInsufficientSubmissions = errors.New("insufficient submissions")
	ErrAlreadyFinalized        = errors.New("round already finalized")
	ErrConsensusNotFound       = errors.New("consensus not found")
	ErrAlreadyDisputed         = errors.New("consensus already disputed")
)

// Dispute errors.
var (
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrDisputeResolved = errors.New("dispute already resolved")
)
