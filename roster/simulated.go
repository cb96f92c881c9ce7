package roster

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// SimulatedRegistry is an in-memory Registry for tests and the demo
// daemon.
type SimulatedRegistry struct {
	mu        sync.RWMutex
	providers map[ethcommon.Address]VaultProvider
	snapshots map[ethcommon.Address]map[uint64]SigningRoster
}

func NewSimulatedRegistry() *SimulatedRegistry {
	return &SimulatedRegistry{
		providers: make(map[ethcommon.Address]VaultProvider),
		snapshots: make(map[ethcommon.Address]map[uint64]SigningRoster),
	}
}

func (r *SimulatedRegistry) RegisterProvider(p VaultProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Address] = p
}

func (r *SimulatedRegistry) PutRosterSnapshot(provider ethcommon.Address, version uint64, keepers []VaultKeeper, challengers []UniversalChallenger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snapshots[provider]; !ok {
		r.snapshots[provider] = make(map[uint64]SigningRoster)
	}
	r.snapshots[provider][version] = SigningRoster{
		Version:              version,
		Provider:             r.providers[provider],
		VaultKeepers:         keepers,
		UniversalChallengers: challengers,
	}
}

func (r *SimulatedRegistry) Provider(address ethcommon.Address) (*VaultProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[address]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (r *SimulatedRegistry) RosterAtVersion(address ethcommon.Address, version uint64) (*SigningRoster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.providers[address]; !ok {
		return nil, ErrProviderNotFound
	}
	snapshot, ok := r.snapshots[address][version]
	if !ok {
		return nil, ErrVersionNotFound
	}
	snapshot.Provider = r.providers[address]
	return &snapshot, nil
}

func (r *SimulatedRegistry) LatestVersion(address ethcommon.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.snapshots[address]
	if !ok || len(versions) == 0 {
		return 0, ErrVersionNotFound
	}
	var latest uint64
	for v := range versions {
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}
