package engine

import (
	"context"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"evm-token-engine/internal/amount"
	"evm-token-engine/internal/domain"
	"evm-token-engine/internal/evm"
	"evm-token-engine/internal/observability"
	"evm-token-engine/internal/storage"
	"evm-token-engine/internal/token"
)

// Orchestrator runs the transfer pipeline for one token contract.
// Flow: validate → scale → balance fail-fast → estimate → affordability →
// submit. Each step's result gates the next; no two network calls for the
// same request are ever in flight together. Independent requests may run
// concurrently; the metadata cache is the only shared state.
type Orchestrator struct {
	client    evm.LedgerClient
	cache     *token.MetadataCache
	balances  *token.BalanceQuery
	estimator *FeeEstimator
	contract  common.Address

	// Optional collaborators
	records  storage.TransferRecordStore
	feeObs   storage.FeeObservationStore
	metrics  *observability.Metrics
	progress chan<- domain.ProgressEvent

	logger  *log.Logger
	verbose bool
}

// Options for creating an Orchestrator.
type Options struct {
	// Required
	Client        evm.LedgerClient
	MetadataCache *token.MetadataCache
	Contract      common.Address

	// BufferPercent is the gas safety margin; 0 selects the default.
	BufferPercent uint64

	// Optional: persistence, metrics and progress reporting. Store and
	// metrics failures never gate the transfer path.
	RecordStore         storage.TransferRecordStore
	FeeObservationStore storage.FeeObservationStore
	Metrics             *observability.Metrics

	// Progress receives one event per pipeline stage. Sends are
	// non-blocking; a slow consumer misses events rather than stalling
	// the transfer.
	Progress chan<- domain.ProgressEvent

	Logger  *log.Logger
	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		client:    opts.Client,
		cache:     opts.MetadataCache,
		balances:  token.NewBalanceQuery(opts.Client, opts.MetadataCache, opts.Contract),
		estimator: NewFeeEstimator(opts.Client, opts.BufferPercent),
		contract:  opts.Contract,
		records:   opts.RecordStore,
		feeObs:    opts.FeeObservationStore,
		metrics:   opts.Metrics,
		progress:  opts.Progress,
		logger:    opts.Logger,
		verbose:   opts.Verbose,
	}
}

// CheckBalance returns the token balance of an address as a decimal
// string.
func (o *Orchestrator) CheckBalance(ctx context.Context, address string) (string, error) {
	if o.metrics != nil {
		o.metrics.BalanceQueries.Inc()
	}
	formatted, err := o.balances.Formatted(ctx, address)
	if err != nil {
		if o.metrics != nil {
			o.metrics.BalanceQueryErrors.Inc()
		}
		return "", err
	}
	return formatted, nil
}

// Transfer runs one orchestration for a human-entered amount and
// recipient. The returned outcome is terminal: Submitted with the tx hash,
// Rejected with a reason, or Failed with a kind and detail. Submission
// does not wait for mining; pair with AwaitConfirmation to track it.
func (o *Orchestrator) Transfer(ctx context.Context, recipient, humanAmount string) domain.TransferOutcome {
	started := time.Now()
	req := domain.TransferRequest{
		Recipient:   recipient,
		HumanAmount: humanAmount,
		Sender:      o.client.Sender().Hex(),
	}

	outcome, amountBase, quote := o.run(ctx, req)

	o.record(ctx, req, outcome, amountBase, quote)
	if o.metrics != nil {
		o.metrics.TransferDuration.Observe(time.Since(started).Seconds())
		switch outcome.Status {
		case domain.StatusSubmitted:
			o.metrics.TransfersSubmitted.Inc()
		case domain.StatusRejected:
			o.metrics.TransfersRejected.WithLabelValues(string(outcome.Reason)).Inc()
		case domain.StatusFailed:
			o.metrics.TransfersFailed.WithLabelValues(string(outcome.Kind)).Inc()
		}
	}
	return outcome
}

// run executes the pipeline stages and produces the terminal outcome,
// along with the scaled amount and fee quote when the run got that far.
func (o *Orchestrator) run(ctx context.Context, req domain.TransferRequest) (domain.TransferOutcome, *big.Int, *domain.FeeQuote) {
	o.emit(domain.StageValidating, "")
	if strings.TrimSpace(req.Recipient) == "" || !common.IsHexAddress(req.Recipient) {
		return o.rejected(domain.RejectInvalidInput, nil), nil, nil
	}
	if strings.TrimSpace(req.HumanAmount) == "" {
		return o.rejected(domain.RejectInvalidInput, nil), nil, nil
	}

	meta, err := o.cache.Get(ctx, o.contract)
	if err != nil {
		return o.failed(domain.FailMetadataUnavailable, err), nil, nil
	}

	o.emit(domain.StageScaling, "")
	amountBase, err := amount.ToBaseUnits(req.HumanAmount, meta.Decimals)
	if err != nil {
		return o.rejected(domain.RejectInvalidAmount, nil), nil, nil
	}

	// Cheap fail-fast: a sender with zero native balance cannot pay any
	// fee, so don't spend a request on estimation.
	o.emit(domain.StageCheckingBalance, "")
	nativeBalance, err := o.client.NativeBalance(ctx, o.client.Sender())
	if err != nil {
		return o.failed(domain.FailBalanceReadFailed, err), amountBase, nil
	}
	if nativeBalance.Sign() == 0 {
		return o.rejected(domain.RejectNoGasFunds, nil), amountBase, nil
	}

	o.emit(domain.StageEstimating, "")
	quote, err := o.estimator.Estimate(ctx, o.contract, common.HexToAddress(req.Recipient), amountBase)
	if err != nil {
		return o.failed(domain.FailEstimationFailed, err), amountBase, nil
	}
	o.observeFee(ctx, quote)

	o.emit(domain.StageCheckingAffordability, "")
	if result := CheckAffordability(nativeBalance, quote); !result.Affordable {
		return o.rejected(domain.RejectInsufficientFunds, result.Shortfall), amountBase, quote
	}

	o.emit(domain.StageSubmitting, "")
	args := []interface{}{common.HexToAddress(req.Recipient), amountBase}
	txHash, err := o.client.SignAndSubmit(ctx, o.contract, "transfer", args, quote.BufferedGas, quote.GasPrice, nil)
	if err != nil {
		return o.failed(domain.FailSubmissionFailed, err), amountBase, quote
	}

	o.logf("transfer submitted: %s %s %s -> %s", txHash.Hex(), meta.Symbol, req.Sender, req.Recipient)
	return domain.TransferOutcome{Status: domain.StatusSubmitted, TxHash: txHash.Hex()}, amountBase, quote
}

// rejected builds a Rejected outcome. Rejections are expected local
// results, not errors; they are logged only in verbose mode.
func (o *Orchestrator) rejected(reason domain.RejectReason, shortfall *big.Int) domain.TransferOutcome {
	o.logf("transfer rejected: %s", reason)
	return domain.TransferOutcome{
		Status:    domain.StatusRejected,
		Reason:    reason,
		Shortfall: shortfall,
	}
}

// failed builds a Failed outcome carrying the underlying message.
func (o *Orchestrator) failed(kind domain.FailureKind, err error) domain.TransferOutcome {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	if o.logger != nil {
		o.logger.Printf("transfer failed (%s): %s", kind, detail)
	}
	return domain.TransferOutcome{
		Status: domain.StatusFailed,
		Kind:   kind,
		Detail: detail,
	}
}

// emit publishes a progress event without ever blocking the pipeline.
func (o *Orchestrator) emit(stage domain.Stage, detail string) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- domain.ProgressEvent{Stage: stage, Detail: detail}:
	default:
	}
}

// observeFee records a fee quote for analytics, best effort.
func (o *Orchestrator) observeFee(ctx context.Context, quote *domain.FeeQuote) {
	if o.metrics != nil {
		o.metrics.GasEstimate.Observe(float64(quote.GasEstimate))
		o.metrics.BufferedGas.Observe(float64(quote.BufferedGas))
	}
	if o.feeObs == nil {
		return
	}
	obs := &domain.FeeObservation{
		Contract:     o.contract.Hex(),
		GasEstimate:  quote.GasEstimate,
		BufferedGas:  quote.BufferedGas,
		GasPriceWei:  quote.GasPrice.String(),
		TotalCostWei: quote.TotalCost.String(),
		ObservedAt:   time.Now().UnixMilli(),
	}
	if err := o.feeObs.InsertBulk(ctx, []*domain.FeeObservation{obs}); err != nil && o.logger != nil {
		o.logger.Printf("fee observation store: %v", err)
	}
}

// record persists the terminal outcome, best effort.
func (o *Orchestrator) record(ctx context.Context, req domain.TransferRequest, outcome domain.TransferOutcome, amountBase *big.Int, quote *domain.FeeQuote) {
	if o.records == nil {
		return
	}

	rec := &domain.TransferRecord{
		TxHash:    outcome.TxHash,
		Contract:  o.contract.Hex(),
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Status:    string(outcome.Status),
		CreatedAt: time.Now().UnixMilli(),
	}
	if amountBase != nil {
		rec.AmountBase = amountBase.String()
	}
	if quote != nil {
		rec.GasLimit = quote.BufferedGas
		rec.GasPriceWei = quote.GasPrice.String()
	}
	switch outcome.Status {
	case domain.StatusRejected:
		rec.Detail = string(outcome.Reason)
	case domain.StatusFailed:
		rec.Detail = string(outcome.Kind) + ": " + outcome.Detail
	}

	if err := o.records.Insert(ctx, rec); err != nil && o.logger != nil {
		o.logger.Printf("transfer record store: %v", err)
	}
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.verbose && o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
