package executor

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
	"github.com/LavonTMCQ/misterbot/internal/platform/strike"
	"github.com/LavonTMCQ/misterbot/internal/signing"
)

func unsignedPayload() string {
	return "84" + strings.Repeat("ab", 60)
}

type fakePlatform struct {
	mu         sync.Mutex
	openCalls  int
	closeCalls int
	resp       strike.TradeResponse
	err        error
}

func (f *fakePlatform) ExecuteTrade(ctx context.Context, intent domain.TradeIntent) (strike.TradeResponse, error) {
	f.mu.Lock()
	f.openCalls++
	f.mu.Unlock()
	return f.resp, f.err
}

func (f *fakePlatform) ClosePosition(ctx context.Context, intent domain.TradeIntent) (strike.TradeResponse, error) {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	return f.resp, f.err
}

func (f *fakePlatform) CombineWitness(ctx context.Context, txCborHex, witnessSetCborHex string) (string, error) {
	return "84" + strings.Repeat("cd", 60), nil
}

type testWallet struct {
	signErr error
	txHash  string
}

func (w *testWallet) Address() string { return "addr1test" }

func (w *testWallet) SignTx(ctx context.Context, txCborHex string, partialSign bool) (string, error) {
	if w.signErr != nil {
		return "", w.signErr
	}
	return "a100", nil
}

func (w *testWallet) SubmitTx(ctx context.Context, signedCborHex string) (string, error) {
	return w.txHash, nil
}

type recordingStore struct {
	mu   sync.Mutex
	recs []domain.SubmissionRecord
}

func (s *recordingStore) Insert(ctx context.Context, rec domain.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingStore) GetByIntent(ctx context.Context, intentID string) (domain.SubmissionRecord, error) {
	return domain.SubmissionRecord{}, domain.ErrNotFound
}

func (s *recordingStore) ListRecent(ctx context.Context, limit int) ([]domain.SubmissionRecord, error) {
	return nil, nil
}

func (s *recordingStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SubmissionRecord, error) {
	return nil, nil
}

func (s *recordingStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *recordingStore) last(t *testing.T) domain.SubmissionRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recs) == 0 {
		t.Fatal("no submission records written")
	}
	return s.recs[len(s.recs)-1]
}

type mapSubmissionCache struct {
	mu     sync.Mutex
	hashes map[string]string
}

func newMapSubmissionCache() *mapSubmissionCache {
	return &mapSubmissionCache{hashes: make(map[string]string)}
}

func (c *mapSubmissionCache) SetTxHash(ctx context.Context, intentID, txHash string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[intentID] = txHash
	return nil
}

func (c *mapSubmissionCache) GetTxHash(ctx context.Context, intentID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.hashes[intentID]; ok {
		return h, nil
	}
	return "", domain.ErrNotFound
}

type heldLocks struct{}

func (heldLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func newTestExecutor(platform *fakePlatform, wallet *testWallet) (*Executor, *recordingStore) {
	logger := slog.New(slog.DiscardHandler)
	coord := signing.NewCoordinator(wallet, platform, signing.NewSubmitter(nil, logger), signing.Config{}, logger)
	store := &recordingStore{}
	exec := NewExecutor(nil, platform, coord, logger).WithSubmissionStore(store)
	return exec, store
}

func openIntent(id string) domain.TradeIntent {
	return domain.TradeIntent{
		ID:            id,
		Source:        "api",
		Action:        domain.IntentActionOpen,
		Pair:          "ADA",
		Side:          domain.TradeSideLong,
		CollateralADA: 100,
		Leverage:      3,
		WalletAddress: "addr1test",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestProcessFullFlow(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{CBOR: unsignedPayload()}}
	wallet := &testWallet{txHash: "deadbeef"}
	exec, store := newTestExecutor(platform, wallet)
	cache := newMapSubmissionCache()
	exec.WithSubmissionCache(cache)

	exec.process(context.Background(), openIntent("i-1"))

	rec := store.last(t)
	if !rec.Success || rec.TxHash != "deadbeef" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Stage != domain.StageDone {
		t.Fatalf("expected done stage, got %s", rec.Stage)
	}
	if rec.Route != domain.RouteWallet {
		t.Fatalf("expected wallet route, got %s", rec.Route)
	}
	wantFp, err := cardano.PayloadFingerprint(unsignedPayload())
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if rec.Fingerprint != wantFp {
		t.Fatalf("recorded fingerprint %q does not match the unsigned payload's %q", rec.Fingerprint, wantFp)
	}
	if h, _ := cache.GetTxHash(context.Background(), "i-1"); h != "deadbeef" {
		t.Fatalf("tx hash not cached: %q", h)
	}
}

func TestProcessDeduplicates(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{Finalized: true}}
	exec, _ := newTestExecutor(platform, &testWallet{})

	intent := openIntent("i-dup")
	exec.process(context.Background(), intent)
	exec.process(context.Background(), intent)

	if platform.openCalls != 1 {
		t.Fatalf("duplicate intent must not reach the platform, got %d calls", platform.openCalls)
	}
}

func TestProcessSkipsExpired(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{Finalized: true}}
	exec, _ := newTestExecutor(platform, &testWallet{})

	intent := openIntent("i-old")
	intent.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	exec.process(context.Background(), intent)

	if platform.openCalls != 0 {
		t.Fatal("expired intent must not reach the platform")
	}
}

func TestProcessSkipsAlreadySubmitted(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{CBOR: unsignedPayload()}}
	exec, _ := newTestExecutor(platform, &testWallet{txHash: "aa"})
	cache := newMapSubmissionCache()
	cache.SetTxHash(context.Background(), "i-seen", "earlier-hash", time.Minute)
	exec.WithSubmissionCache(cache)

	exec.process(context.Background(), openIntent("i-seen"))

	if platform.openCalls != 0 {
		t.Fatal("already-submitted intent must not reach the platform")
	}
}

func TestProcessSkipsWhenWalletLocked(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{Finalized: true}}
	exec, _ := newTestExecutor(platform, &testWallet{})
	exec.WithLockManager(heldLocks{})

	exec.process(context.Background(), openIntent("i-locked"))

	if platform.openCalls != 0 {
		t.Fatal("intent must not execute while the wallet lock is held")
	}
}

func TestProcessFinalizedSkipsSigning(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{Finalized: true, Message: "done"}}
	wallet := &testWallet{signErr: errors.New("must not be prompted")}
	exec, store := newTestExecutor(platform, wallet)

	exec.process(context.Background(), openIntent("i-final"))

	rec := store.last(t)
	if !rec.Success {
		t.Fatalf("finalized trade should succeed: %+v", rec)
	}
	if rec.Stage != domain.StageDone {
		t.Fatalf("expected done stage, got %s", rec.Stage)
	}
}

func TestProcessRecordsFailureStage(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{CBOR: unsignedPayload()}}
	wallet := &testWallet{signErr: &domain.WalletError{Code: 2, Info: "user declined"}}
	exec, store := newTestExecutor(platform, wallet)

	exec.process(context.Background(), openIntent("i-rejected"))

	rec := store.last(t)
	if rec.Success {
		t.Fatal("rejected flow must not be recorded successful")
	}
	if rec.Stage != domain.StageSign {
		t.Fatalf("expected sign stage, got %s", rec.Stage)
	}
	if rec.Fingerprint == "" {
		t.Fatal("a flow that reached the wallet must record the payload fingerprint")
	}
}

func TestProcessRecordsBuildFailure(t *testing.T) {
	platform := &fakePlatform{err: errors.New("strike: execute trade: insufficient collateral")}
	wallet := &testWallet{signErr: errors.New("must not be prompted")}
	exec, store := newTestExecutor(platform, wallet)

	exec.process(context.Background(), openIntent("i-nobuild"))

	rec := store.last(t)
	if rec.Success {
		t.Fatal("build failure must not be recorded successful")
	}
	if rec.Stage != domain.StageBuild {
		t.Fatalf("platform build errors belong to the build stage, got %s", rec.Stage)
	}
	if !strings.Contains(rec.Error, "insufficient collateral") {
		t.Fatalf("platform error text lost: %q", rec.Error)
	}
}

func TestProcessRoutesCloseIntents(t *testing.T) {
	platform := &fakePlatform{resp: strike.TradeResponse{Finalized: true}}
	exec, _ := newTestExecutor(platform, &testWallet{})

	intent := openIntent("i-close")
	intent.Action = domain.IntentActionClose
	intent.PositionID = "pos-1"
	exec.process(context.Background(), intent)

	if platform.closeCalls != 1 || platform.openCalls != 0 {
		t.Fatalf("close intent must hit ClosePosition, got open=%d close=%d",
			platform.openCalls, platform.closeCalls)
	}
}

func TestDedup(t *testing.T) {
	d := NewDedup(50 * time.Millisecond)
	if d.IsDuplicate("a") {
		t.Fatal("first sighting is not a duplicate")
	}
	if !d.IsDuplicate("a") {
		t.Fatal("second sighting within ttl is a duplicate")
	}
	time.Sleep(60 * time.Millisecond)
	if d.IsDuplicate("a") {
		t.Fatal("expired entry is not a duplicate")
	}
	d.Cleanup()
}
