package roster

import (
	"database/sql"
	"strings"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	providerAddr = ethcommon.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	keeperAddr   = ethcommon.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	challAddr    = ethcommon.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

func newTestRegistry(t *testing.T) (*SQLiteRegistry, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	reg, err := NewSQLiteRegistry(db)
	require.NoError(t, err)

	return reg, func() {
		reg.Close()
		db.Close()
	}
}

func TestProviderNotFound(t *testing.T) {
	reg, done := newTestRegistry(t)
	defer done()

	_, err := reg.Provider(providerAddr)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRosterSnapshotVersionPinning(t *testing.T) {
	reg, done := newTestRegistry(t)
	defer done()

	require.NoError(t, reg.RegisterProvider(VaultProvider{
		Address:   providerAddr,
		BtcPubkey: strings.Repeat("01", 32),
		RpcUrl:    "http://127.0.0.1:18545",
	}))

	v1Keepers := []VaultKeeper{{Address: keeperAddr, BtcPubkey: strings.Repeat("02", 32)}}
	v1Challengers := []UniversalChallenger{{Address: challAddr, BtcPubkey: strings.Repeat("03", 32)}}
	require.NoError(t, reg.PutRosterSnapshot(providerAddr, 1, v1Keepers, v1Challengers))

	// version 2 rotates the keeper key
	v2Keepers := []VaultKeeper{{Address: keeperAddr, BtcPubkey: strings.Repeat("04", 32)}}
	require.NoError(t, reg.PutRosterSnapshot(providerAddr, 2, v2Keepers, v1Challengers))

	// the vault locked at version 1 must see the version-1 keeper key,
	// not the rotated head
	r1, err := reg.RosterAtVersion(providerAddr, 1)
	require.NoError(t, err)
	require.Len(t, r1.VaultKeepers, 1)
	assert.Equal(t, strings.Repeat("02", 32), r1.VaultKeepers[0].BtcPubkey)
	require.Len(t, r1.UniversalChallengers, 1)

	r2, err := reg.RosterAtVersion(providerAddr, 2)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("04", 32), r2.VaultKeepers[0].BtcPubkey)

	latest, err := reg.LatestVersion(providerAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest)

	// no snapshot at version 3: error, never fall back
	_, err = reg.RosterAtVersion(providerAddr, 3)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestSimulatedRegistryMatchesContract(t *testing.T) {
	reg := NewSimulatedRegistry()

	_, err := reg.Provider(providerAddr)
	assert.ErrorIs(t, err, ErrProviderNotFound)

	reg.RegisterProvider(VaultProvider{Address: providerAddr, RpcUrl: "http://x"})
	reg.PutRosterSnapshot(providerAddr, 1,
		[]VaultKeeper{{Address: keeperAddr}}, []UniversalChallenger{{Address: challAddr}})

	r, err := reg.RosterAtVersion(providerAddr, 1)
	require.NoError(t, err)
	assert.Len(t, r.VaultKeepers, 1)

	_, err = reg.RosterAtVersion(providerAddr, 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}
