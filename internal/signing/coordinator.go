// Package signing implements the client half of the Cardano transaction
// co-signing protocol: validate the unsigned payload, obtain a partial
// witness set from the wallet, have the platform merge witnesses
// server-side, and broadcast the result with a node-API fallback.
package signing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/cardano"
	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// State is the coordinator's position in the signing flow.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAwaitingSignature
	StateCombining
	StateSubmitting
	StateSucceeded
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateValidating:        "validating",
	StateAwaitingSignature: "awaiting_signature",
	StateCombining:         "combining",
	StateSubmitting:        "submitting",
	StateSucceeded:         "succeeded",
	StateFailed:            "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Combiner merges an unsigned transaction with a witness set server-side
// and returns the fully signed transaction CBOR. Implemented by the Strike
// API client.
type Combiner interface {
	CombineWitness(ctx context.Context, txCborHex, witnessSetCborHex string) (string, error)
}

// Config holds per-step timeouts. The wallet timeout is the longest because
// it covers a human interacting with a popup that can sit open indefinitely.
type Config struct {
	WalletTimeout  time.Duration
	CombineTimeout time.Duration
	SubmitTimeout  time.Duration
}

// DefaultConfig returns the standard step timeouts.
func DefaultConfig() Config {
	return Config{
		WalletTimeout:  60 * time.Second,
		CombineTimeout: 30 * time.Second,
		SubmitTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WalletTimeout <= 0 {
		c.WalletTimeout = d.WalletTimeout
	}
	if c.CombineTimeout <= 0 {
		c.CombineTimeout = d.CombineTimeout
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = d.SubmitTimeout
	}
	return c
}

// Coordinator drives one signing flow at a time: exactly one wallet prompt,
// one combiner call, and one or two submission attempts per Execute. A
// second Execute while one is in flight fails with ErrFlowInFlight instead
// of queueing, because a queued flow would fire a wallet prompt the user
// never asked for.
type Coordinator struct {
	wallet    domain.WalletAPI
	combiner  Combiner
	submitter *Submitter
	cfg       Config
	logger    *slog.Logger

	runMu   sync.Mutex // held for the duration of one Execute
	stateMu sync.Mutex
	state   State
}

// NewCoordinator creates a Coordinator over the given wallet, combiner and
// submitter.
func NewCoordinator(wallet domain.WalletAPI, combiner Combiner, submitter *Submitter, cfg Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		wallet:    wallet,
		combiner:  combiner,
		submitter: submitter,
		cfg:       cfg.withDefaults(),
		logger:    logger.With(slog.String("component", "signing_coordinator")),
		state:     StateIdle,
	}
}

// State reports the coordinator's current flow state.
func (c *Coordinator) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Execute runs the full co-signing flow for one unsigned transaction and
// returns the terminal SubmissionResult. The unsigned payload is consumed
// by exactly one attempt; a retry after failure is a fresh Execute call
// initiated by the caller, never an automatic re-run.
func (c *Coordinator) Execute(ctx context.Context, unsignedCborHex string) (domain.SubmissionResult, error) {
	if !c.runMu.TryLock() {
		return domain.SubmissionResult{}, fmt.Errorf("signing: %w", domain.ErrFlowInFlight)
	}
	defer c.runMu.Unlock()

	res, err := c.run(ctx, unsignedCborHex)
	if err != nil {
		c.setState(StateFailed)
		if res.Error == "" {
			res.Error = err.Error()
		}
		return res, err
	}
	c.setState(StateSucceeded)
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, unsignedCborHex string) (domain.SubmissionResult, error) {
	// Validate before anything that costs a user interaction.
	c.setState(StateValidating)
	unsigned, err := cardano.ValidateTxPayload(unsignedCborHex, c.logger)
	if err != nil {
		return domain.SubmissionResult{}, &FlowError{Stage: domain.StageValidate, Err: err}
	}
	cardano.LogTxPayload(c.logger, "unsigned", cardano.DescribeTxPayload(unsigned))

	// The fingerprint identifies the unsigned payload in logs and in the
	// persisted submission record.
	fp, _ := cardano.PayloadFingerprint(unsigned)
	log := c.logger.With(slog.String("fingerprint", shortFingerprint(fp)))

	// Partial signature from the wallet. partialSign must be true: the
	// transaction has required signers added server-side, and a wallet
	// attempting a full sign would produce an invalid witness set.
	c.setState(StateAwaitingSignature)
	signCtx, cancelSign := context.WithTimeout(ctx, c.cfg.WalletTimeout)
	witnessSet, err := c.wallet.SignTx(signCtx, unsigned, true)
	cancelSign()
	if err != nil {
		return domain.SubmissionResult{Fingerprint: fp}, &FlowError{Stage: domain.StageSign, Err: ClassifyWalletError(err)}
	}
	log.Debug("witness set obtained", slog.Int("witness_hex_len", len(witnessSet)))

	// Server-side witness merge. A combination failure is terminal for
	// this witness set: retrying needs a fresh signature, not a repeat
	// call, so the error is surfaced verbatim and nothing is retried.
	c.setState(StateCombining)
	combineCtx, cancelCombine := context.WithTimeout(ctx, c.cfg.CombineTimeout)
	signed, err := c.combiner.CombineWitness(combineCtx, unsigned, witnessSet)
	cancelCombine()
	if err != nil {
		return domain.SubmissionResult{Fingerprint: fp}, &FlowError{
			Stage: domain.StageCombine,
			Err:   fmt.Errorf("%w: %v", domain.ErrCombinationFailed, err),
		}
	}
	cardano.LogTxPayload(c.logger, "signed", cardano.DescribeTxPayload(signed))

	c.setState(StateSubmitting)
	submitCtx, cancelSubmit := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	res, err := c.submitter.Submit(submitCtx, c.wallet, signed)
	cancelSubmit()
	res.Fingerprint = fp
	if err != nil {
		return res, &FlowError{Stage: domain.StageSubmit, Err: err}
	}

	log.Info("signing flow complete",
		slog.String("tx_hash", res.TxHash),
		slog.String("route", string(res.Route)),
	)
	return res, nil
}

// shortFingerprint truncates a fingerprint for log readability.
func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16]
	}
	return fp
}
