// Package pipeline turns messages into confirmed transactions: it resolves
// the chain id, sequence and gas limit, signs, assembles and submits.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/broadcaster"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"go.uber.org/zap"
)

const (
	DefaultGasScale        = 1.3
	DefaultGasFlatIncrease = 0
)

type Config struct {
	// ChainID skips the status query when set.
	ChainID         string
	GasScale        float64
	GasFlatIncrease uint64
}

func DefaultConfig() *Config {
	return &Config{
		GasScale:        DefaultGasScale,
		GasFlatIncrease: DefaultGasFlatIncrease,
	}
}

// Request describes one transaction. Signer overrides the pipeline's signer
// when set.
type Request struct {
	Sender   address.Address
	Username string
	Messages types.Messages
	// GasLimit is used verbatim when set; otherwise gas is simulated.
	GasLimit *uint64
	// Sequence is used verbatim when set; otherwise it is queried.
	Sequence *uint32
	Expiry   *types.Timestamp
	Signer   signer.ISigner
}

type BuildResult struct {
	Tx      *types.Tx
	Wire    []byte
	Hash    string
	Context *types.UnsignedTxContext
	Trace   []State
}

type SubmitResult struct {
	*BuildResult
	Outcome *types.BroadcastOutcome
	State   State
}

type Pipeline struct {
	logger      *zap.Logger
	transport   transport.ITransport
	signer      signer.ISigner
	broadcaster broadcaster.IBroadcaster
	config      *Config
	sequences   *SequenceTracker
	observer    IObserver
	now         func() time.Time
}

// NewPipeline builds a pipeline. s may be nil when every Request carries its
// own signer.
func NewPipeline(t transport.ITransport, s signer.ISigner, b broadcaster.IBroadcaster, cfg *Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.GasScale <= 0 {
		return nil, fmt.Errorf("gas scale must be positive, got %v", cfg.GasScale)
	}
	if b == nil {
		var err error
		b, err = broadcaster.NewBroadcaster(t, nil, logger)
		if err != nil {
			return nil, err
		}
	}
	return &Pipeline{
		logger:      logger,
		transport:   t,
		signer:      s,
		broadcaster: b,
		config:      cfg,
		sequences:   NewSequenceTracker(),
		now:         time.Now,
	}, nil
}

func (p *Pipeline) SetObserver(o IObserver) {
	p.observer = o
}

func (p *Pipeline) Transport() transport.ITransport {
	return p.transport
}

func (p *Pipeline) Signer() signer.ISigner {
	return p.signer
}

// ResetSequence drops the cached sequence of sender so the next request
// queries the chain again. Use it when the account also sends txs from
// elsewhere.
func (p *Pipeline) ResetSequence(sender address.Address) {
	p.sequences.Forget(sender)
}

// Build runs the pipeline up to the assembled tx without broadcasting. The
// local sequence cache is not advanced.
func (p *Pipeline) Build(ctx context.Context, req *Request) (*BuildResult, error) {
	s, err := p.validate(req)
	if err != nil {
		return nil, err
	}
	lease, err := p.sequences.Acquire(ctx, req.Sender)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	run := &run{p: p, req: req}
	built, err := run.build(ctx, s, lease)
	if err != nil {
		run.fail(err)
		return nil, err
	}
	return built, nil
}

// Submit builds, broadcasts and waits for confirmation. Sequence acquisition
// is serialized per sender until the node accepts or rejects the broadcast.
func (p *Pipeline) Submit(ctx context.Context, req *Request) (*SubmitResult, error) {
	s, err := p.validate(req)
	if err != nil {
		return nil, err
	}
	lease, err := p.sequences.Acquire(ctx, req.Sender)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	run := &run{p: p, req: req}
	built, err := run.build(ctx, s, lease)
	if err != nil {
		run.fail(err)
		return nil, err
	}
	result := &SubmitResult{BuildResult: built}

	outcome, err := p.broadcaster.Submit(ctx, built.Wire)
	if err != nil {
		result.State = run.fail(err)
		result.Trace = run.trace
		return result, err
	}
	lease.Advance(built.Context.Sequence)
	lease.Release()
	run.transition(StateSubmitted, nil)

	result.Outcome = outcome

	txResult, err := p.broadcaster.WaitForTx(ctx, outcome.Hash)
	if err != nil {
		result.State = run.fail(err)
		result.Trace = run.trace
		return result, err
	}
	outcome.Result = txResult
	result.State = StateConfirmed
	run.transition(StateConfirmed, nil)
	result.Trace = run.trace
	return result, nil
}

type SimulateResult struct {
	Outcome *types.SimulateOutcome
	// GasLimit is the limit Submit would use for the same request. It is
	// zero when the simulation failed.
	GasLimit uint64
	Context  *types.UnsignedTxContext
}

// Simulate dry-runs req on the transport. Nothing is signed and the sequence
// cache is left untouched.
func (p *Pipeline) Simulate(ctx context.Context, req *Request) (*SimulateResult, error) {
	if req == nil {
		return nil, txErrors.NewValidationError("request", "request is required")
	}
	if err := validateBody(req); err != nil {
		return nil, err
	}
	chainID, err := p.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}
	lease, err := p.sequences.Acquire(ctx, req.Sender)
	if err != nil {
		return nil, err
	}
	sequence := p.resolveSequence(ctx, req, lease)
	lease.Release()

	c := &types.UnsignedTxContext{
		Sender:   req.Sender,
		Username: req.Username,
		Messages: req.Messages,
		ChainID:  chainID,
		Sequence: sequence,
		Expiry:   req.Expiry,
	}
	outcome, err := p.transport.Simulate(ctx, &types.UnsignedTx{
		Sender: c.Sender,
		Msgs:   c.Messages,
		Data:   c.Metadata(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate tx: %w", err)
	}
	result := &SimulateResult{Outcome: outcome, Context: c}
	if outcome.Error == "" {
		result.GasLimit = ScaleGas(outcome.GasUsed, p.config.GasScale, p.config.GasFlatIncrease)
		c.GasLimit = result.GasLimit
	}
	return result, nil
}

// validate performs every check that must fail before any network call.
func (p *Pipeline) validate(req *Request) (signer.ISigner, error) {
	if req == nil {
		return nil, txErrors.NewValidationError("request", "request is required")
	}
	s := req.Signer
	if s == nil {
		s = p.signer
	}
	if s == nil {
		return nil, txErrors.NewValidationError("signer", "no signer configured")
	}
	if err := validateBody(req); err != nil {
		return nil, err
	}
	return s, nil
}

func validateBody(req *Request) error {
	if req.Username == "" {
		return txErrors.NewValidationError("username", "username is required")
	}
	if req.Sender.IsZero() {
		return txErrors.NewValidationError("sender", "sender is required")
	}
	if len(req.Messages) == 0 {
		return txErrors.NewValidationError("messages", "at least one message is required")
	}
	for i, m := range req.Messages {
		if m == nil {
			return txErrors.NewValidationError(fmt.Sprintf("messages[%d]", i), "message is nil")
		}
	}
	if req.GasLimit != nil && *req.GasLimit == 0 {
		return txErrors.NewValidationError("gasLimit", "gas limit must be positive")
	}
	return nil
}

// run carries the state of one submission.
type run struct {
	p        *Pipeline
	req      *Request
	state    State
	sequence uint32
	hash     string
	trace    []State
}

func (r *run) transition(to State, err error) {
	from := r.state
	r.state = to
	r.trace = append(r.trace, to)

	fields := []zap.Field{
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("sender", r.req.Sender.String()),
		zap.Uint32("sequence", r.sequence),
	}
	if r.hash != "" {
		fields = append(fields, zap.String("hash", r.hash))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	r.p.logger.Debug("Pipeline transition", fields...)

	if r.p.observer != nil {
		r.p.observer.OnTransition(Transition{
			From:     from,
			To:       to,
			Sender:   r.req.Sender,
			Sequence: r.sequence,
			Hash:     r.hash,
			Err:      err,
			At:       r.p.now(),
		})
	}
}

// fail moves to the terminal state matching err.
func (r *run) fail(err error) State {
	to := StateFailed
	var timeout *txErrors.ConfirmationTimeout
	if errors.As(err, &timeout) {
		to = StateTimedOut
	}
	r.transition(to, err)
	return to
}

func (r *run) build(ctx context.Context, s signer.ISigner, lease *SequenceLease) (*BuildResult, error) {
	r.transition(StateBuilding, nil)

	chainID, err := r.p.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}
	r.sequence = r.p.resolveSequence(ctx, r.req, lease)

	c := &types.UnsignedTxContext{
		Sender:   r.req.Sender,
		Username: r.req.Username,
		Messages: r.req.Messages,
		ChainID:  chainID,
		Sequence: r.sequence,
		Expiry:   r.req.Expiry,
	}

	gasLimit, err := r.p.resolveGas(ctx, r.req, c)
	if err != nil {
		return nil, err
	}
	c.GasLimit = gasLimit
	r.transition(StateGasResolved, nil)

	signed, err := s.SignTx(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if signed.SignedContext != nil {
		c = signed.SignedContext
	}
	r.transition(StateSigned, nil)

	tx := &types.Tx{
		Sender:     c.Sender,
		GasLimit:   c.GasLimit,
		Msgs:       c.Messages,
		Data:       c.Metadata(),
		Credential: signed.Credential,
	}
	wire, err := tx.WireBytes()
	if err != nil {
		return nil, err
	}
	r.hash = types.TxHash(wire)
	r.transition(StateAssembled, nil)

	return &BuildResult{
		Tx:      tx,
		Wire:    wire,
		Hash:    r.hash,
		Context: c,
		Trace:   r.trace,
	}, nil
}

func (p *Pipeline) resolveChainID(ctx context.Context) (string, error) {
	if p.config.ChainID != "" {
		return p.config.ChainID, nil
	}
	status, err := p.transport.QueryStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query chain id: %w", err)
	}
	return status.ChainID, nil
}

// resolveSequence never fails: a failed lookup falls back to the cached
// sequence, or 0, with a warning.
func (p *Pipeline) resolveSequence(ctx context.Context, req *Request, lease *SequenceLease) uint32 {
	if req.Sequence != nil {
		return *req.Sequence
	}
	cached, hasCached := lease.Cached()

	queried, err := QueryNextNonce(ctx, p.transport, req.Sender)
	if err != nil {
		p.logger.Sugar().Warnw("Failed to query next sequence, falling back",
			"sender", req.Sender.String(),
			"fallback", cached,
			"error", err,
		)
		return cached
	}
	if hasCached && cached > queried {
		return cached
	}
	return queried
}

func (p *Pipeline) resolveGas(ctx context.Context, req *Request, c *types.UnsignedTxContext) (uint64, error) {
	if req.GasLimit != nil {
		return *req.GasLimit, nil
	}
	outcome, err := p.transport.Simulate(ctx, &types.UnsignedTx{
		Sender: c.Sender,
		Msgs:   c.Messages,
		Data:   c.Metadata(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to simulate tx: %w", err)
	}
	if outcome.Error != "" {
		return 0, &txErrors.TxFailed{Log: outcome.Error, Simulated: true}
	}
	return ScaleGas(outcome.GasUsed, p.config.GasScale, p.config.GasFlatIncrease), nil
}

// ScaleGas is ceil(gasUsed * scale) + flatIncrease, saturating at MaxUint64.
func ScaleGas(gasUsed uint64, scale float64, flatIncrease uint64) uint64 {
	scaled := math.Ceil(float64(gasUsed) * scale)
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	limit := uint64(scaled)
	if limit > math.MaxUint64-flatIncrease {
		return math.MaxUint64
	}
	return limit + flatIncrease
}
