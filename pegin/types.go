package pegin

import (
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/bitlend-io/vault-go/lifecycle"
)

// PeginRequest is a Bitcoin deposit locked under a vault contract.
// Owned by the chain; this side only reads it.
type PeginRequest struct {
	Id                  string            // canonical 0x-prefixed 64-hex BTC txid
	Depositor           ethcommon.Address // EVM account of the depositor
	AmountSats          uint64            // smallest BTC unit
	VaultProviderId     ethcommon.Address
	ContractStatus      lifecycle.ContractStatus
	UnsignedPayoutTxHex string // set once the provider has prepared transactions
}

// ConfirmedPegin is the minimal confirmed view the chain reader returns,
// the input side of local-record reconciliation.
type ConfirmedPegin struct {
	Id             string
	ContractStatus lifecycle.ContractStatus
	Timestamp      time.Time // block timestamp of the latest status change
}

// ClaimerTransactions is the unsigned PSBT pair for one claimer.
// Immutable once fetched from the provider.
type ClaimerTransactions struct {
	ClaimerPubkey         string // x-only BTC pubkey hex, the map key downstream
	PayoutOptimisticTxHex string
	PayoutTxHex           string
}

// ClaimerSignatures is the signed counterpart of ClaimerTransactions.
type ClaimerSignatures struct {
	PayoutOptimisticSignature string
	PayoutSignature           string
}
