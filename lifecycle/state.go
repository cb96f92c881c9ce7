/*
Package lifecycle reconciles the two systems of record for a peg-in:
the on-chain contract status (authoritative, slow to update) and the
per-device local status (optimistic, bridges confirmation latency).

All functions here are pure. Other components delegate to them and
never re-derive the rules.
*/
package lifecycle

// ResolveState maps (contract status, local status) to the display state.
// Total over every reachable pair.
//
// Rules, in priority order:
//  1. LIQUIDATED always wins, local state cannot mask a liquidation.
//  2. At or beyond ACTIVE the chain is authoritative.
//  3. Below ACTIVE, a local PAYOUT_SIGNED renders Processing: the
//     ceremony finished on this device but the chain has not caught up.
//  4. Otherwise mirror the contract status.
//
// A nil localStatus means no informative local record exists.
func ResolveState(contractStatus ContractStatus, localStatus *LocalStorageStatus) DisplayState {
	if contractStatus == StatusLiquidated {
		return DisplayLiquidated
	}

	if contractStatus >= StatusActive {
		if contractStatus == StatusRedeemed {
			return DisplayRedeemed
		}
		return DisplayActive
	}

	if localStatus != nil && *localStatus == LocalStatusPayoutSigned {
		return DisplayProcessing
	}

	if contractStatus == StatusVerified {
		return DisplayVerified
	}
	return DisplayPending
}

// ShouldRemoveFromLocalStorage decides whether a confirmed contract
// status makes the local record redundant.
//
// True when the chain has overtaken local optimism (>= ACTIVE), or when
// the one transition this cache exists to bridge has completed: the
// payout was signed locally and the chain has reached VERIFIED.
//
// Callers must only invoke this when a confirmed entry for the id
// exists; an unconfirmed record is always kept (subject to retention).
func ShouldRemoveFromLocalStorage(contractStatus ContractStatus, localStatus LocalStorageStatus) bool {
	if contractStatus >= StatusActive {
		return true
	}
	if contractStatus >= StatusVerified && localStatus == LocalStatusPayoutSigned {
		return true
	}
	return false
}

// NextStatusForAction is the fixed action -> local status table.
// An action with no mapping leaves local status unchanged (ok=false).
func NextStatusForAction(action PeginAction) (LocalStorageStatus, bool) {
	switch action {
	case ActionSignPayoutTransactions:
		return LocalStatusPayoutSigned, true
	case ActionSignAndBroadcastBitcoin:
		return LocalStatusPending, true
	default:
		return "", false
	}
}
