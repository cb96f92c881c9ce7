package lifecycle

// ContractStatus is the authoritative on-chain lifecycle of a peg-in.
// Ordered PENDING < VERIFIED < ACTIVE < REDEEMED; LIQUIDATED is a
// disjoint terminal branch reachable from ACTIVE. The client only
// ever reads it, never writes it.
type ContractStatus int

const (
	StatusPending ContractStatus = iota
	StatusVerified
	StatusActive
	StatusRedeemed
	StatusLiquidated
)

func (s ContractStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusActive:
		return "active"
	case StatusRedeemed:
		return "redeemed"
	case StatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// LocalStorageStatus is the off-chain optimistic progress marker,
// visible only on the device that performed the action.
type LocalStorageStatus string

const (
	LocalStatusPending      LocalStorageStatus = "pending"
	LocalStatusPayoutSigned LocalStorageStatus = "payout_signed"
)

// PeginAction is a user-initiated action against a peg-in.
type PeginAction string

const (
	ActionSignPayoutTransactions  PeginAction = "sign_payout_transactions"
	ActionSignAndBroadcastBitcoin PeginAction = "sign_and_broadcast_to_bitcoin"
)

// DisplayState is what the UI layer renders for one peg-in. It is the
// single merged view over contract status and local status; nothing
// outside this package computes it.
type DisplayState string

const (
	DisplayPending    DisplayState = "Pending"
	DisplayVerified   DisplayState = "Verified"
	DisplayProcessing DisplayState = "Processing"
	DisplayActive     DisplayState = "Active"
	DisplayRedeemed   DisplayState = "Redeemed"
	DisplayLiquidated DisplayState = "Liquidated"
)
