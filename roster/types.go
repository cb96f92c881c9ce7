package roster

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// VaultProvider is the counterparty that prepares claim transactions
// and accepts signatures over its RPC endpoint.
type VaultProvider struct {
	Address   ethcommon.Address
	BtcPubkey string // x-only, hex
	RpcUrl    string
}

// VaultKeeper co-signs payout paths. The keeper set is pinned to the
// protocol version locked at vault creation.
type VaultKeeper struct {
	Address   ethcommon.Address
	BtcPubkey string
}

// UniversalChallenger can dispute payout paths. Version-pinned like
// keepers.
type UniversalChallenger struct {
	Address   ethcommon.Address
	BtcPubkey string
}

// SigningRoster is the resolved set of parties whose signatures are
// required for one redemption ceremony, at one protocol version.
type SigningRoster struct {
	Version              uint64
	Provider             VaultProvider
	VaultKeepers         []VaultKeeper
	UniversalChallengers []UniversalChallenger
}
