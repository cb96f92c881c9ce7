package pendingstore

import (
	"time"

	"github.com/bitlend-io/vault-go/lifecycle"
)

// PendingOperationRecord is a local, per-account cache entry bridging
// the time between a client-submitted action and its on-chain
// confirmation. At most one record per id per account.
type PendingOperationRecord struct {
	Id            string                       `json:"id"` // canonical 0x-prefixed 64-hex
	CreatedAt     time.Time                    `json:"created_at"`
	LocalStatus   lifecycle.LocalStorageStatus `json:"local_status"`
	AmountSats    uint64                       `json:"amount_sats"`
	ProviderIds   []string                     `json:"provider_ids,omitempty"`
	BtcTxHash     string                       `json:"btc_tx_hash,omitempty"` // set once broadcast
	UnsignedTxHex string                       `json:"unsigned_tx_hex,omitempty"`
	SelectedUtxos []string                     `json:"selected_utxos,omitempty"`
}

// ActivityEntry is one row of the unified display list: either a
// confirmed on-chain peg-in or a pending local operation not yet
// visible on-chain. Confirmed entries win over pending ones with the
// same id.
type ActivityEntry struct {
	Id           string                        `json:"id"`
	AmountSats   uint64                        `json:"amount_sats"`
	DisplayState lifecycle.DisplayState        `json:"display_state"`
	Confirmed    bool                          `json:"confirmed"`
	Timestamp    time.Time                     `json:"timestamp"` // max(createdAt, confirmedTimestamp)
	LocalStatus  *lifecycle.LocalStorageStatus `json:"local_status,omitempty"`
}
