package roster

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrProviderNotFound = errors.New("vault provider is not registered")
	ErrVersionNotFound  = errors.New("no roster snapshot at the requested version")
)

// Registry resolves signing rosters. Snapshots are stored per
// (provider, version); a ceremony must use the roster at the vault's
// locked protocol version, never the current head. There is no
// fallback across versions: a missing snapshot is an error, not an
// invitation to guess.
type Registry interface {
	// Provider returns the registered provider by address.
	Provider(address ethcommon.Address) (*VaultProvider, error)

	// RosterAtVersion returns the full roster snapshot for the
	// provider at the given protocol version.
	RosterAtVersion(address ethcommon.Address, version uint64) (*SigningRoster, error)

	// LatestVersion returns the newest snapshot version for the
	// provider.
	LatestVersion(address ethcommon.Address) (uint64, error)
}
