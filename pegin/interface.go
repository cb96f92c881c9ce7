package pegin

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ChainReader is the read boundary to the vault controller contract.
// Implementations sit on top of an EVM node; this core only consumes
// the confirmed view.
type ChainReader interface {
	// ConfirmedPegins returns the confirmed {id, status} pairs for all
	// peg-ins of one depositor account.
	ConfirmedPegins(ctx context.Context, depositor ethcommon.Address) ([]ConfirmedPegin, error)

	// PeginById returns the full on-chain peg-in, or nil if untracked.
	PeginById(ctx context.Context, id string) (*PeginRequest, error)
}
