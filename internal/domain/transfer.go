package domain

import "math/big"

// TransferRequest is one user-initiated transfer attempt. Immutable for the
// duration of a single orchestration run.
type TransferRequest struct {
	Recipient   string // destination address (0x-hex)
	HumanAmount string // decimal string as entered, e.g. "2.5"
	Sender      string // sending address (0x-hex)
}

// Stage identifies a step of the transfer pipeline.
type Stage string

// Transfer pipeline stages, in execution order.
const (
	StageValidating            Stage = "validating"
	StageScaling               Stage = "scaling"
	StageCheckingBalance       Stage = "checking_balance"
	StageEstimating            Stage = "estimating"
	StageCheckingAffordability Stage = "checking_affordability"
	StageSubmitting            Stage = "submitting"
)

// ProgressEvent is emitted as the orchestrator enters each stage.
type ProgressEvent struct {
	Stage  Stage
	Detail string
}

// RejectReason classifies expected, local refusals of a transfer.
type RejectReason string

// Reject reasons. These are normal outcomes, not errors.
const (
	RejectInvalidInput      RejectReason = "invalid_input"
	RejectInvalidAmount     RejectReason = "invalid_amount"
	RejectNoGasFunds        RejectReason = "no_gas_funds"
	RejectInsufficientFunds RejectReason = "insufficient_funds"
)

// FailureKind classifies network or protocol failures.
type FailureKind string

// Failure kinds.
const (
	FailMetadataUnavailable FailureKind = "metadata_unavailable"
	FailBalanceReadFailed   FailureKind = "balance_read_failed"
	FailEstimationFailed    FailureKind = "estimation_failed"
	FailSubmissionFailed    FailureKind = "submission_failed"
)

// OutcomeStatus is the terminal status of one orchestration run.
type OutcomeStatus string

// Terminal statuses.
const (
	StatusSubmitted OutcomeStatus = "submitted"
	StatusRejected  OutcomeStatus = "rejected"
	StatusFailed    OutcomeStatus = "failed"
)

// TransferOutcome is the terminal result of one orchestration run.
// Exactly one of the detail fields is meaningful per status:
// TxHash for Submitted, Reason (+Shortfall for insufficient funds) for
// Rejected, Kind and Detail for Failed.
type TransferOutcome struct {
	Status    OutcomeStatus
	TxHash    string       // Submitted: transaction hash
	Reason    RejectReason // Rejected: why
	Shortfall *big.Int     // Rejected(insufficient_funds): missing wei
	Kind      FailureKind  // Failed: what broke
	Detail    string       // Failed: underlying message
}

// Submitted reports whether the transfer reached the network.
func (o TransferOutcome) Submitted() bool { return o.Status == StatusSubmitted }

// TransferRecord is the persisted form of a terminal transfer outcome.
type TransferRecord struct {
	TxHash      string // empty unless status is submitted
	Contract    string // token contract address
	Sender      string
	Recipient   string
	AmountBase  string // base units as decimal string
	GasLimit    uint64
	GasPriceWei string // wei as decimal string
	Status      string
	Detail      string // reject reason or failure detail, empty on success
	CreatedAt   int64  // ms
}
