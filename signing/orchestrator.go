/*
Package signing drives the multi-party payout-signature ceremony for
one peg-in redemption: resolve the signer roster, fetch the unsigned
claim transactions, sign them (batch or sequential depending on wallet
capability), submit to the vault provider, and only then advance the
local lifecycle state.

One Ceremony instance serves exactly one peg-in; concurrent ceremonies
use separate instances. Steps inside a ceremony are strictly
sequential.
*/
package signing

import (
	"context"
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/lifecycle"
	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/pendingstore"
	"github.com/bitlend-io/vault-go/providerrpc"
	"github.com/bitlend-io/vault-go/roster"
	"github.com/bitlend-io/vault-go/walletsigner"
)

// DialProviderFunc opens a client against a provider's RPC URL. Tests
// substitute it; production uses providerrpc.NewClient.
type DialProviderFunc func(url string) ProviderClient

// Config carries the collaborators shared by all ceremonies.
type Config struct {
	Registry     roster.Registry
	Store        *pendingstore.Store
	DialProvider DialProviderFunc
	OnProgress   func(Progress) // optional
}

// Ceremony is the per-peg-in signing state machine.
type Ceremony struct {
	cfg     *Config
	account ethcommon.Address
	peginId string

	state      CeremonyState
	roster     *roster.SigningRoster
	sctx       *SigningContext
	provider   ProviderClient
	signatures map[string]pegin.ClaimerSignatures // retained across failed submits
}

func NewCeremony(cfg *Config, account ethcommon.Address, peginId string) (*Ceremony, error) {
	id, err := common.NormalizePeginId(peginId)
	if err != nil {
		return nil, &ValidationError{Field: "peginId", Reason: err.Error()}
	}
	dial := cfg.DialProvider
	if dial == nil {
		dial = func(url string) ProviderClient {
			return providerrpc.NewClient(&providerrpc.ClientConfig{Url: url})
		}
	}
	c := &Ceremony{
		cfg:     &Config{Registry: cfg.Registry, Store: cfg.Store, DialProvider: dial, OnProgress: cfg.OnProgress},
		account: account,
		peginId: id,
		state:   StateIdle,
	}
	return c, nil
}

func (c *Ceremony) State() CeremonyState { return c.state }

// Signatures returns the produced signature map, retained in memory
// after a failed submit so the caller can retry without re-signing.
func (c *Ceremony) Signatures() map[string]pegin.ClaimerSignatures { return c.signatures }

func (c *Ceremony) fail(err error) error {
	c.state = StateFailed
	return err
}

func (c *Ceremony) emit(p Progress) {
	if c.cfg.OnProgress != nil {
		c.cfg.OnProgress(p)
	}
}

// ResolveRoster resolves the signer roster pinned to the vault's
// locked protocol version. Idle -> RosterResolved.
func (c *Ceremony) ResolveRoster(providerAddr ethcommon.Address, lockedVersion uint64) (*roster.SigningRoster, error) {
	if c.state != StateIdle {
		return nil, c.fail(fmt.Errorf("resolve roster in state %s", c.state))
	}

	r, err := c.cfg.Registry.RosterAtVersion(providerAddr, lockedVersion)
	if err != nil {
		if errors.Is(err, roster.ErrProviderNotFound) {
			return nil, c.fail(&NotFoundError{What: "vault provider", Id: providerAddr.Hex()})
		}
		if errors.Is(err, roster.ErrVersionNotFound) {
			return nil, c.fail(&NotFoundError{
				What: "roster snapshot",
				Id:   fmt.Sprintf("%s@v%d", providerAddr.Hex(), lockedVersion),
			})
		}
		return nil, c.fail(err)
	}

	c.roster = r
	c.state = StateRosterResolved
	logger.WithFields(logger.Fields{
		"peginId":     common.Shorten(c.peginId, 6),
		"provider":    providerAddr.Hex(),
		"version":     lockedVersion,
		"keepers":     len(r.VaultKeepers),
		"challengers": len(r.UniversalChallengers),
	}).Debug("signing roster resolved")
	return r, nil
}

// PrepareContext fetches the unsigned claim transactions and validates
// every ceremony input. Any validation failure aborts before a wallet
// is ever touched. RosterResolved -> ContextPrepared.
func (c *Ceremony) PrepareContext(ctx context.Context, depositorPubkey string) (*SigningContext, error) {
	if c.state != StateRosterResolved {
		return nil, c.fail(fmt.Errorf("prepare context in state %s", c.state))
	}

	if !common.IsValidXOnlyPubkey(depositorPubkey) {
		return nil, c.fail(&ValidationError{Field: "depositorBtcPubkey", Reason: "not a 32-byte x-only key"})
	}
	if len(c.roster.VaultKeepers) == 0 {
		return nil, c.fail(&ValidationError{Field: "vaultKeepers", Reason: "empty"})
	}
	if len(c.roster.UniversalChallengers) == 0 {
		return nil, c.fail(&ValidationError{Field: "universalChallengers", Reason: "empty"})
	}
	if c.roster.Provider.RpcUrl == "" {
		return nil, c.fail(&ValidationError{Field: "vaultProvider", Reason: "missing rpc url"})
	}

	c.provider = c.cfg.DialProvider(c.roster.Provider.RpcUrl)
	wireTxs, err := c.provider.GetClaimerTransactions(ctx, c.peginId, depositorPubkey)
	if err != nil {
		return nil, c.fail(err)
	}
	if len(wireTxs) == 0 {
		return nil, c.fail(&ValidationError{Field: "claimerTransactions", Reason: "empty"})
	}

	txs := make([]pegin.ClaimerTransactions, 0, len(wireTxs))
	for _, w := range wireTxs {
		if !common.IsValidXOnlyPubkey(w.ClaimerPubkey) {
			return nil, c.fail(&ValidationError{Field: "claimerPubkey", Reason: "not a 32-byte x-only key"})
		}
		if w.PayoutOptimisticTxHex == "" || w.PayoutTxHex == "" {
			return nil, c.fail(&ValidationError{Field: "claimerTransactions", Reason: "missing transaction hex"})
		}
		txs = append(txs, pegin.ClaimerTransactions{
			ClaimerPubkey:         w.ClaimerPubkey,
			PayoutOptimisticTxHex: w.PayoutOptimisticTxHex,
			PayoutTxHex:           w.PayoutTxHex,
		})
	}

	c.sctx = &SigningContext{
		PeginId:         c.peginId,
		DepositorPubkey: depositorPubkey,
		LockedVersion:   c.roster.Version,
		Roster:          c.roster,
		Transactions:    txs,
	}
	c.state = StateContextPrepared
	return c.sctx, nil
}

// Sign produces the signature pair per claimer using the wallet's best
// capability: one batch interaction when the wallet supports it,
// otherwise per-transaction sequential signing with progress updates.
// The capability is resolved once here, never re-checked mid-ceremony.
// ContextPrepared -> Signing.
func (c *Ceremony) Sign(ctx context.Context, signer walletsigner.Signer) (map[string]pegin.ClaimerSignatures, error) {
	if c.state != StateContextPrepared {
		return nil, c.fail(fmt.Errorf("sign in state %s", c.state))
	}
	if signer == nil {
		return nil, c.fail(&WalletError{Err: walletsigner.ErrNotConnected})
	}

	var (
		sigs map[string]pegin.ClaimerSignatures
		err  error
	)
	if batch, ok := walletsigner.BatchCapable(signer); ok {
		sigs, err = c.signBatch(ctx, batch)
	} else {
		sigs, err = c.signSequential(ctx, signer)
	}
	if err != nil {
		// partial signatures are discarded, not submitted
		return nil, c.fail(err)
	}

	c.signatures = sigs
	c.state = StateSigning
	return sigs, nil
}

func (c *Ceremony) signBatch(ctx context.Context, signer walletsigner.BatchSigner) (map[string]pegin.ClaimerSignatures, error) {
	claimers := c.sctx.Transactions
	total := len(claimers) * 2

	// deterministic order: per claimer, payout_optimistic then payout
	psbts := make([]string, 0, total)
	for _, tx := range claimers {
		psbts = append(psbts, tx.PayoutOptimisticTxHex, tx.PayoutTxHex)
	}

	c.emit(Progress{CompletedSteps: 0, TotalSteps: total, AllClaimers: true})
	signed, err := signer.SignPsbtBatch(ctx, psbts)
	if err != nil {
		return nil, &WalletError{Err: err}
	}
	if len(signed) != total {
		return nil, &WalletError{Err: fmt.Errorf("wallet returned %d signed psbts, want %d", len(signed), total)}
	}
	c.emit(Progress{CompletedSteps: total, TotalSteps: total, AllClaimers: true})

	sigs := make(map[string]pegin.ClaimerSignatures, len(claimers))
	for i, tx := range claimers {
		optimistic, err := walletsigner.ExtractKeySpendSignatureHex(signed[i*2])
		if err != nil {
			return nil, &WalletError{ClaimerPubkey: tx.ClaimerPubkey, Err: err}
		}
		payout, err := walletsigner.ExtractKeySpendSignatureHex(signed[i*2+1])
		if err != nil {
			return nil, &WalletError{ClaimerPubkey: tx.ClaimerPubkey, Err: err}
		}
		sigs[tx.ClaimerPubkey] = pegin.ClaimerSignatures{
			PayoutOptimisticSignature: optimistic,
			PayoutSignature:           payout,
		}
	}
	return sigs, nil
}

func (c *Ceremony) signSequential(ctx context.Context, signer walletsigner.Signer) (map[string]pegin.ClaimerSignatures, error) {
	claimers := c.sctx.Transactions
	total := len(claimers) * 2
	completed := 0

	signOne := func(claimerIdx int, kind StepKind, psbtHex, claimerPubkey string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", &WalletError{ClaimerPubkey: claimerPubkey, Err: err}
		}
		signed, err := signer.SignPsbt(ctx, psbtHex)
		if err != nil {
			return "", &WalletError{ClaimerPubkey: claimerPubkey, Err: err}
		}
		sig, err := walletsigner.ExtractKeySpendSignatureHex(signed)
		if err != nil {
			return "", &WalletError{ClaimerPubkey: claimerPubkey, Err: err}
		}
		completed++
		c.emit(Progress{
			CompletedSteps: completed,
			TotalSteps:     total,
			ClaimerIndex:   claimerIdx,
			StepKind:       kind,
		})
		return sig, nil
	}

	sigs := make(map[string]pegin.ClaimerSignatures, len(claimers))
	for i, tx := range claimers {
		optimistic, err := signOne(i, StepPayoutOptimistic, tx.PayoutOptimisticTxHex, tx.ClaimerPubkey)
		if err != nil {
			return nil, err
		}
		payout, err := signOne(i, StepPayout, tx.PayoutTxHex, tx.ClaimerPubkey)
		if err != nil {
			return nil, err
		}
		sigs[tx.ClaimerPubkey] = pegin.ClaimerSignatures{
			PayoutOptimisticSignature: optimistic,
			PayoutSignature:           payout,
		}
	}
	return sigs, nil
}

// Submit hands every claimer's signatures to the provider in a single
// all-or-nothing RPC. Only after the provider durably accepts does the
// local lifecycle advance. A failed submit keeps the signatures in
// memory so the caller can retry without another wallet interaction.
// Signing -> Submitted -> Complete.
func (c *Ceremony) Submit(ctx context.Context) error {
	if c.state != StateSigning {
		return c.fail(fmt.Errorf("submit in state %s", c.state))
	}

	wireSigs := make(map[string]providerrpc.WireClaimerSignatures, len(c.signatures))
	for pubkey, s := range c.signatures {
		wireSigs[pubkey] = providerrpc.WireClaimerSignatures{
			PayoutOptimisticSignature: s.PayoutOptimisticSignature,
			PayoutSignature:           s.PayoutSignature,
		}
	}

	if err := c.provider.SubmitClaimerSignatures(ctx, c.peginId, c.sctx.DepositorPubkey, wireSigs); err != nil {
		// state stays at Signing: the signature map survives for a retry
		logger.WithFields(logger.Fields{
			"peginId": common.Shorten(c.peginId, 6),
			"err":     err,
		}).Warn("signature submission failed, signatures retained for retry")
		return err
	}
	c.state = StateSubmitted

	next, ok := lifecycle.NextStatusForAction(lifecycle.ActionSignPayoutTransactions)
	if !ok {
		return c.fail(fmt.Errorf("no local status mapped for %s", lifecycle.ActionSignPayoutTransactions))
	}
	if err := c.cfg.Store.UpdateStatus(c.account, c.peginId, next, ""); err != nil {
		return c.fail(err)
	}

	c.state = StateComplete
	logger.WithFields(logger.Fields{
		"peginId":  common.Shorten(c.peginId, 6),
		"claimers": len(c.signatures),
	}).Info("payout signing ceremony complete")
	return nil
}

// Run executes the full ceremony end to end.
func (c *Ceremony) Run(ctx context.Context, providerAddr ethcommon.Address, lockedVersion uint64, depositorPubkey string, signer walletsigner.Signer) error {
	if _, err := c.ResolveRoster(providerAddr, lockedVersion); err != nil {
		return err
	}
	if _, err := c.PrepareContext(ctx, depositorPubkey); err != nil {
		return err
	}
	if _, err := c.Sign(ctx, signer); err != nil {
		return err
	}
	return c.Submit(ctx)
}
