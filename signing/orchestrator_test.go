package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pendingstore"
	"github.com/bitlend-io/vault-go/providerrpc"
	"github.com/bitlend-io/vault-go/roster"
	"github.com/bitlend-io/vault-go/walletsigner"
)

var (
	testAccount      = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	testProviderAddr = ethcommon.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testKeeperAddr   = ethcommon.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testChallAddr    = ethcommon.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

// stubProvider is an in-memory ProviderClient recording interactions.
type stubProvider struct {
	transactions []providerrpc.WireClaimerTransactions
	failSubmits  int // fail this many submits with a retryable error
	submissions  []map[string]providerrpc.WireClaimerSignatures
	fetchCalls   int
}

func (s *stubProvider) GetClaimerTransactions(_ context.Context, _, _ string) ([]providerrpc.WireClaimerTransactions, error) {
	s.fetchCalls++
	return s.transactions, nil
}

func (s *stubProvider) SubmitClaimerSignatures(_ context.Context, _, _ string, sigs map[string]providerrpc.WireClaimerSignatures) error {
	if s.failSubmits > 0 {
		s.failSubmits--
		return &providerrpc.RpcError{Method: providerrpc.MethodSubmitClaimerSignatures, Message: "http status 503", Retryable: true}
	}
	s.submissions = append(s.submissions, sigs)
	return nil
}

// countingSigner wraps a Signer and counts wallet interactions.
type countingSigner struct {
	walletsigner.Signer
	calls int
}

func (c *countingSigner) SignPsbt(ctx context.Context, psbtHex string) (string, error) {
	c.calls++
	return c.Signer.SignPsbt(ctx, psbtHex)
}

// failAfterSigner rejects once n signatures have been produced.
type failAfterSigner struct {
	walletsigner.Signer
	allow int
	done  int
}

func (f *failAfterSigner) SignPsbt(ctx context.Context, psbtHex string) (string, error) {
	if f.done >= f.allow {
		return "", walletsigner.ErrRejected
	}
	f.done++
	return f.Signer.SignPsbt(ctx, psbtHex)
}

type ceremonyEnv struct {
	registry *roster.SimulatedRegistry
	store    *pendingstore.Store
	provider *stubProvider
	signer   *walletsigner.LocalSigner
	peginId  string
	progress []Progress
	cfg      *Config
}

func newCeremonyEnv(t *testing.T, claimers int) *ceremonyEnv {
	signer, err := walletsigner.NewRandomLocalSigner()
	require.NoError(t, err)

	env := &ceremonyEnv{
		registry: roster.NewSimulatedRegistry(),
		store:    pendingstore.NewStore(pendingstore.NewMemoryBackend()),
		provider: &stubProvider{},
		signer:   signer,
		peginId:  common.RandPeginId(),
	}

	env.registry.RegisterProvider(roster.VaultProvider{
		Address:   testProviderAddr,
		BtcPubkey: strings.Repeat("01", 32),
		RpcUrl:    "http://provider.test",
	})
	env.registry.PutRosterSnapshot(testProviderAddr, 1,
		[]roster.VaultKeeper{{Address: testKeeperAddr, BtcPubkey: strings.Repeat("02", 32)}},
		[]roster.UniversalChallenger{{Address: testChallAddr, BtcPubkey: strings.Repeat("03", 32)}},
	)

	for i := 0; i < claimers; i++ {
		psbtA, err := walletsigner.BuildKeySpendPsbtHex(signer.XOnlyPubkey(), int64(10_000+i))
		require.NoError(t, err)
		psbtB, err := walletsigner.BuildKeySpendPsbtHex(signer.XOnlyPubkey(), int64(20_000+i))
		require.NoError(t, err)
		env.provider.transactions = append(env.provider.transactions, providerrpc.WireClaimerTransactions{
			ClaimerPubkey:         fmt.Sprintf("%02x%s", i+1, strings.Repeat("00", 31)),
			PayoutOptimisticTxHex: psbtA,
			PayoutTxHex:           psbtB,
		})
	}

	require.NoError(t, env.store.Upsert(testAccount, pendingstore.PendingOperationRecord{
		Id:          env.peginId,
		LocalStatus: lifecycle.LocalStatusPending,
	}))

	env.cfg = &Config{
		Registry:     env.registry,
		Store:        env.store,
		DialProvider: func(string) ProviderClient { return env.provider },
		OnProgress:   func(p Progress) { env.progress = append(env.progress, p) },
	}
	return env
}

func depositorPubkey() string { return strings.Repeat("ab", 32) }

func TestSequentialCeremonyHappyPath(t *testing.T) {
	env := newCeremonyEnv(t, 3)
	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	err = ceremony.Run(context.Background(), testProviderAddr, 1, depositorPubkey(), env.signer)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, ceremony.State())

	// exactly 2n progress updates, payout_optimistic before payout per claimer
	require.Len(t, env.progress, 6)
	for i, p := range env.progress {
		assert.Equal(t, i+1, p.CompletedSteps)
		assert.Equal(t, 6, p.TotalSteps)
		assert.Equal(t, i/2, p.ClaimerIndex)
		if i%2 == 0 {
			assert.Equal(t, StepPayoutOptimistic, p.StepKind)
		} else {
			assert.Equal(t, StepPayout, p.StepKind)
		}
	}

	// one result entry per claimer, keyed by claimer pubkey
	sigs := ceremony.Signatures()
	require.Len(t, sigs, 3)
	for _, tx := range env.provider.transactions {
		s, ok := sigs[tx.ClaimerPubkey]
		require.True(t, ok)
		assert.NotEmpty(t, s.PayoutOptimisticSignature)
		assert.NotEmpty(t, s.PayoutSignature)
	}

	// exactly one all-claimer submission
	require.Len(t, env.provider.submissions, 1)
	assert.Len(t, env.provider.submissions[0], 3)

	// local status advanced only after the provider accepted
	rec, err := env.store.Get(testAccount, env.peginId)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, lifecycle.LocalStatusPayoutSigned, rec.LocalStatus)
}

func TestBatchCeremonySingleInteraction(t *testing.T) {
	env := newCeremonyEnv(t, 2)
	batch := walletsigner.NewBatchLocalSigner(env.signer)

	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)
	require.NoError(t, ceremony.Run(context.Background(), testProviderAddr, 1, depositorPubkey(), batch))

	// one update before and one after, both marked all-claimers
	require.Len(t, env.progress, 2)
	assert.True(t, env.progress[0].AllClaimers)
	assert.Equal(t, 0, env.progress[0].CompletedSteps)
	assert.True(t, env.progress[1].AllClaimers)
	assert.Equal(t, 4, env.progress[1].CompletedSteps)

	assert.Len(t, ceremony.Signatures(), 2)
}

func TestSigningFailureMidwayAbortsEverything(t *testing.T) {
	env := newCeremonyEnv(t, 3)
	// allow 3 signatures: fails on claimer 2's payout step
	signer := &failAfterSigner{Signer: env.signer, allow: 3}

	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	err = ceremony.Run(context.Background(), testProviderAddr, 1, depositorPubkey(), signer)
	require.Error(t, err)
	assert.Equal(t, StateFailed, ceremony.State())

	// the failing claimer is named
	var walletErr *WalletError
	require.True(t, errors.As(err, &walletErr))
	assert.Equal(t, env.provider.transactions[1].ClaimerPubkey, walletErr.ClaimerPubkey)

	// zero submissions, zero status transitions, partial map discarded
	assert.Empty(t, env.provider.submissions)
	assert.Nil(t, ceremony.Signatures())
	rec, err := env.store.Get(testAccount, env.peginId)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.LocalStatusPending, rec.LocalStatus)
}

func TestValidationFailsBeforeWalletInteraction(t *testing.T) {
	env := newCeremonyEnv(t, 1)
	counting := &countingSigner{Signer: env.signer}

	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	// malformed depositor pubkey aborts before any wallet call
	err = ceremony.Run(context.Background(), testProviderAddr, 1, "short", counting)
	require.Error(t, err)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, counting.calls)
	assert.Equal(t, 0, env.provider.fetchCalls)
}

func TestEmptyClaimerTransactionsRejected(t *testing.T) {
	env := newCeremonyEnv(t, 1)
	env.provider.transactions = nil

	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	_, err = ceremony.ResolveRoster(testProviderAddr, 1)
	require.NoError(t, err)
	_, err = ceremony.PrepareContext(context.Background(), depositorPubkey())
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "claimerTransactions", vErr.Field)
}

func TestUnknownProvider(t *testing.T) {
	env := newCeremonyEnv(t, 1)
	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	unknown := ethcommon.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	_, err = ceremony.ResolveRoster(unknown, 1)
	require.Error(t, err)

	var nfErr *NotFoundError
	require.True(t, errors.As(err, &nfErr))
	assert.Equal(t, "vault provider", nfErr.What)
	assert.Equal(t, StateFailed, ceremony.State())
}

func TestLockedVersionWithoutSnapshot(t *testing.T) {
	env := newCeremonyEnv(t, 1)
	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	_, err = ceremony.ResolveRoster(testProviderAddr, 42)
	require.Error(t, err)

	var nfErr *NotFoundError
	require.True(t, errors.As(err, &nfErr))
	assert.Equal(t, "roster snapshot", nfErr.What)
}

func TestFailedSubmitRetainsSignaturesForRetry(t *testing.T) {
	env := newCeremonyEnv(t, 2)
	env.provider.failSubmits = 1

	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	err = ceremony.Run(context.Background(), testProviderAddr, 1, depositorPubkey(), env.signer)
	require.Error(t, err)

	// not terminal: signatures survive, no status transition yet
	assert.Equal(t, StateSigning, ceremony.State())
	assert.Len(t, ceremony.Signatures(), 2)
	rec, err := env.store.Get(testAccount, env.peginId)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.LocalStatusPending, rec.LocalStatus)

	// retry submission without re-signing
	require.NoError(t, ceremony.Submit(context.Background()))
	assert.Equal(t, StateComplete, ceremony.State())
	require.Len(t, env.provider.submissions, 1)

	rec, err = env.store.Get(testAccount, env.peginId)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.LocalStatusPayoutSigned, rec.LocalStatus)
}

func TestCancellationDiscardsPartialSignatures(t *testing.T) {
	env := newCeremonyEnv(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	// cancel after the first signature lands
	firstDone := false
	env.cfg.OnProgress = func(p Progress) {
		if !firstDone {
			firstDone = true
			cancel()
		}
	}

	ceremony, err := NewCeremony(env.cfg, testAccount, env.peginId)
	require.NoError(t, err)

	err = ceremony.Run(ctx, testProviderAddr, 1, depositorPubkey(), env.signer)
	require.Error(t, err)
	assert.Equal(t, StateFailed, ceremony.State())
	assert.Nil(t, ceremony.Signatures())
	assert.Empty(t, env.provider.submissions)
}

func TestCeremonyRejectsMalformedPeginId(t *testing.T) {
	env := newCeremonyEnv(t, 1)
	_, err := NewCeremony(env.cfg, testAccount, "not-an-id")
	require.Error(t, err)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}
