package signing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

func TestSubmitWalletPathWins(t *testing.T) {
	wallet := &fakeWallet{txHash: "aa11"}
	node := &fakeNode{txHash: "should-not-be-used"}
	sub := NewSubmitter(node, slog.New(slog.DiscardHandler))

	res, err := sub.Submit(context.Background(), wallet, "84a1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Route != domain.RouteWallet || res.TxHash != "aa11" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if node.calls != 0 {
		t.Fatal("fallback must not run when the wallet path succeeds")
	}
}

func TestSubmitFallsBackToNode(t *testing.T) {
	wallet := &fakeWallet{submitErr: errors.New("submitTx unsupported")}
	node := &fakeNode{txHash: "bb22"}
	sub := NewSubmitter(node, slog.New(slog.DiscardHandler))

	res, err := sub.Submit(context.Background(), wallet, "84a1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Route != domain.RouteBlockfrost || res.TxHash != "bb22" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if node.calls != 1 {
		t.Fatalf("expected one node call, got %d", node.calls)
	}
}

func TestSubmitBothPathsFail(t *testing.T) {
	wallet := &fakeWallet{submitErr: errors.New("wallet down")}
	node := &fakeNode{err: errors.New("node rejected tx")}
	sub := NewSubmitter(node, slog.New(slog.DiscardHandler))

	res, err := sub.Submit(context.Background(), wallet, "84a1")
	if !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	// Both failure causes are preserved for the operator.
	if !strings.Contains(err.Error(), "wallet down") || !strings.Contains(err.Error(), "node rejected tx") {
		t.Fatalf("combined error should carry both causes: %v", err)
	}
	if res.Success {
		t.Fatal("result must not be marked successful")
	}
}

func TestSubmitNoFallbackConfigured(t *testing.T) {
	wallet := &fakeWallet{submitErr: errors.New("wallet down")}
	sub := NewSubmitter(nil, slog.New(slog.DiscardHandler))

	_, err := sub.Submit(context.Background(), wallet, "84a1")
	if !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
}

func TestSubmitFallbackBadHex(t *testing.T) {
	wallet := &fakeWallet{submitErr: errors.New("wallet down")}
	node := &fakeNode{txHash: "cc33"}
	sub := NewSubmitter(node, slog.New(slog.DiscardHandler))

	_, err := sub.Submit(context.Background(), wallet, "not-hex")
	if !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	if node.calls != 0 {
		t.Fatal("node must not receive undecodable payloads")
	}
}
