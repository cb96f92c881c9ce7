package signing

import (
	"context"

	"github.com/bitlend-io/vault-go/pegin"
	"github.com/bitlend-io/vault-go/providerrpc"
	"github.com/bitlend-io/vault-go/roster"
)

// CeremonyState is the per-ceremony lifecycle. Failed is terminal and
// reachable from every non-terminal state.
type CeremonyState string

const (
	StateIdle            CeremonyState = "idle"
	StateRosterResolved  CeremonyState = "roster_resolved"
	StateContextPrepared CeremonyState = "context_prepared"
	StateSigning         CeremonyState = "signing"
	StateSubmitted       CeremonyState = "submitted"
	StateComplete        CeremonyState = "complete"
	StateFailed          CeremonyState = "failed"
)

// StepKind names which of the two per-claimer transactions is being
// signed. payout_optimistic always precedes payout.
type StepKind string

const (
	StepPayoutOptimistic StepKind = "payout_optimistic"
	StepPayout           StepKind = "payout"
)

// Progress is emitted after each sequential signature, or once before
// and once after a batch interaction (AllClaimers set).
type Progress struct {
	CompletedSteps int
	TotalSteps     int
	ClaimerIndex   int
	StepKind       StepKind
	AllClaimers    bool
}

// SigningContext is everything a ceremony needs before the first
// wallet interaction. Validated on construction; immutable afterwards.
type SigningContext struct {
	PeginId         string
	DepositorPubkey string // x-only hex
	LockedVersion   uint64
	Roster          *roster.SigningRoster
	Transactions    []pegin.ClaimerTransactions
}

// ProviderClient is the slice of the vault provider RPC surface the
// orchestrator uses. *providerrpc.Client satisfies it.
type ProviderClient interface {
	GetClaimerTransactions(ctx context.Context, peginId, depositorPubkey string) ([]providerrpc.WireClaimerTransactions, error)
	SubmitClaimerSignatures(ctx context.Context, peginId, depositorPubkey string, signatures map[string]providerrpc.WireClaimerSignatures) error
}
