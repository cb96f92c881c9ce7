package pendingstore

import ethcommon "github.com/ethereum/go-ethereum/common"

// Backend is a key-value store scoped per account address, holding the
// serialized record list for that account. The browser local storage,
// a sqlite table and an in-memory map all fit behind it.
//
// Backends store opaque bytes; serialization, merge and retention live
// in the Store so they stay testable independent of the engine.
type Backend interface {
	// Load returns the raw payload for the account.
	// ok=false means no entry exists (distinct from an empty list).
	Load(account ethcommon.Address) (payload []byte, ok bool, err error)

	// Save replaces the payload for the account.
	Save(account ethcommon.Address, payload []byte) error

	// Clear removes the account's entry. Used on corruption recovery.
	Clear(account ethcommon.Address) error
}
