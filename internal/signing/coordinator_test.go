package signing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/cardano"
	"github.com/LavonTMCQ/misterbot/internal/domain"
)

func testPayload() string {
	return "84" + strings.Repeat("ab", 60)
}

// fakeWallet implements domain.WalletAPI with programmable responses.
type fakeWallet struct {
	mu sync.Mutex

	signErr   error
	submitErr error
	witness   string
	txHash    string

	signCalls   int
	submitCalls int
	partialSign bool

	signBlock chan struct{} // when non-nil, SignTx blocks until closed
}

func (f *fakeWallet) Address() string { return "addr1test" }

func (f *fakeWallet) SignTx(ctx context.Context, txCborHex string, partialSign bool) (string, error) {
	f.mu.Lock()
	f.signCalls++
	f.partialSign = partialSign
	block := f.signBlock
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.signErr != nil {
		return "", f.signErr
	}
	return f.witness, nil
}

func (f *fakeWallet) SubmitTx(ctx context.Context, signedCborHex string) (string, error) {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.txHash, nil
}

// fakeCombiner implements Combiner.
type fakeCombiner struct {
	err    error
	signed string

	calls      int
	gotTx      string
	gotWitness string
}

func (f *fakeCombiner) CombineWitness(ctx context.Context, txCborHex, witnessSetCborHex string) (string, error) {
	f.calls++
	f.gotTx = txCborHex
	f.gotWitness = witnessSetCborHex
	if f.err != nil {
		return "", f.err
	}
	return f.signed, nil
}

type fakeNode struct {
	err    error
	txHash string
	calls  int
}

func (f *fakeNode) SubmitRawTx(ctx context.Context, raw []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

func newTestCoordinator(w *fakeWallet, c *fakeCombiner, n *fakeNode) *Coordinator {
	logger := slog.New(slog.DiscardHandler)
	return NewCoordinator(w, c, NewSubmitter(n, logger), Config{}, logger)
}

func TestExecuteHappyPath(t *testing.T) {
	wallet := &fakeWallet{witness: "a100", txHash: "deadbeef"}
	combiner := &fakeCombiner{signed: "84" + strings.Repeat("cd", 60)}
	coord := newTestCoordinator(wallet, combiner, &fakeNode{})

	res, err := coord.Execute(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.TxHash != "deadbeef" {
		t.Fatalf("unexpected tx hash: %s", res.TxHash)
	}
	if res.Route != domain.RouteWallet {
		t.Fatalf("expected wallet route, got %s", res.Route)
	}
	if coord.State() != StateSucceeded {
		t.Fatalf("expected succeeded state, got %s", coord.State())
	}
	if wallet.signCalls != 1 {
		t.Fatalf("expected exactly one wallet prompt, got %d", wallet.signCalls)
	}
	if !wallet.partialSign {
		t.Fatal("wallet must be asked for a partial signature")
	}
	if combiner.calls != 1 {
		t.Fatalf("expected one combine call, got %d", combiner.calls)
	}
	if combiner.gotTx != testPayload() || combiner.gotWitness != "a100" {
		t.Fatal("combiner received wrong payload or witness set")
	}
	wantFp, err := cardano.PayloadFingerprint(testPayload())
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if res.Fingerprint != wantFp {
		t.Fatalf("result fingerprint %q does not match the unsigned payload's %q", res.Fingerprint, wantFp)
	}
}

func TestExecuteValidationFailsBeforeWalletPrompt(t *testing.T) {
	wallet := &fakeWallet{}
	coord := newTestCoordinator(wallet, &fakeCombiner{}, &fakeNode{})

	_, err := coord.Execute(context.Background(), "nothex!")
	if !errors.Is(err, domain.ErrMalformedTransaction) {
		t.Fatalf("expected ErrMalformedTransaction, got %v", err)
	}
	if StageOf(err) != domain.StageValidate {
		t.Fatalf("expected validate stage, got %s", StageOf(err))
	}
	if wallet.signCalls != 0 {
		t.Fatal("wallet must not be prompted for a malformed payload")
	}
	if coord.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", coord.State())
	}
}

func TestExecuteUserRejection(t *testing.T) {
	wallet := &fakeWallet{signErr: &domain.WalletError{Code: 2, Info: "user declined"}}
	combiner := &fakeCombiner{}
	coord := newTestCoordinator(wallet, combiner, &fakeNode{})

	_, err := coord.Execute(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
	if StageOf(err) != domain.StageSign {
		t.Fatalf("expected sign stage, got %s", StageOf(err))
	}
	if combiner.calls != 0 {
		t.Fatal("combiner must not be called after a rejected signature")
	}
}

func TestExecuteCombineFailureIsTerminal(t *testing.T) {
	wallet := &fakeWallet{witness: "a100"}
	combiner := &fakeCombiner{err: errors.New("witness set mismatch")}
	node := &fakeNode{}
	coord := newTestCoordinator(wallet, combiner, node)

	_, err := coord.Execute(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrCombinationFailed) {
		t.Fatalf("expected ErrCombinationFailed, got %v", err)
	}
	if StageOf(err) != domain.StageCombine {
		t.Fatalf("expected combine stage, got %s", StageOf(err))
	}
	if !strings.Contains(err.Error(), "witness set mismatch") {
		t.Fatalf("server error text must be preserved, got %v", err)
	}
	// No automatic retry and no submission attempt.
	if combiner.calls != 1 {
		t.Fatalf("combine must not be retried, got %d calls", combiner.calls)
	}
	if wallet.submitCalls != 0 || node.calls != 0 {
		t.Fatal("nothing must be submitted after a failed combine")
	}
}

func TestExecuteSubmitFallback(t *testing.T) {
	wallet := &fakeWallet{witness: "a100", submitErr: errors.New("wallet submit broken")}
	combiner := &fakeCombiner{signed: "84" + strings.Repeat("cd", 60)}
	node := &fakeNode{txHash: "cafebabe"}
	coord := newTestCoordinator(wallet, combiner, node)

	res, err := coord.Execute(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Route != domain.RouteBlockfrost {
		t.Fatalf("expected blockfrost route, got %s", res.Route)
	}
	if res.TxHash != "cafebabe" {
		t.Fatalf("unexpected tx hash: %s", res.TxHash)
	}
	if node.calls != 1 {
		t.Fatalf("expected one fallback call, got %d", node.calls)
	}
}

func TestExecuteSecondFlowRejected(t *testing.T) {
	block := make(chan struct{})
	wallet := &fakeWallet{witness: "a100", txHash: "deadbeef", signBlock: block}
	combiner := &fakeCombiner{signed: "84" + strings.Repeat("cd", 60)}
	coord := newTestCoordinator(wallet, combiner, &fakeNode{})

	done := make(chan error, 1)
	go func() {
		_, err := coord.Execute(context.Background(), testPayload())
		done <- err
	}()

	// Wait for the first flow to reach the wallet prompt.
	deadline := time.After(2 * time.Second)
	for {
		if coord.State() == StateAwaitingSignature {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first flow never reached the signing stage")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := coord.Execute(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrFlowInFlight) {
		t.Fatalf("expected ErrFlowInFlight, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first flow failed: %v", err)
	}
	if wallet.signCalls != 1 {
		t.Fatalf("second flow must not reach the wallet, got %d prompts", wallet.signCalls)
	}
}

func TestExecuteWalletTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	wallet := &fakeWallet{signBlock: block}
	logger := slog.New(slog.DiscardHandler)
	coord := NewCoordinator(wallet, &fakeCombiner{}, NewSubmitter(&fakeNode{}, logger),
		Config{WalletTimeout: 20 * time.Millisecond}, logger)

	_, err := coord.Execute(context.Background(), testPayload())
	if !errors.Is(err, domain.ErrSigningFailed) {
		t.Fatalf("expected ErrSigningFailed on timeout, got %v", err)
	}
	if StageOf(err) != domain.StageSign {
		t.Fatalf("expected sign stage, got %s", StageOf(err))
	}
}
