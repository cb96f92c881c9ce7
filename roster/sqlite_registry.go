package roster

import (
	"database/sql"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bitlend-io/vault-go/database"
)

// SQLiteRegistry stores provider records and per-version roster
// snapshots mirrored from the registry contract.
type SQLiteRegistry struct {
	stmtCache *database.StmtCache
}

func NewSQLiteRegistry(db *sql.DB) (*SQLiteRegistry, error) {
	if _, err := db.Exec(providerTable + rosterMemberTable); err != nil {
		return nil, err
	}
	return &SQLiteRegistry{stmtCache: database.NewStmtCache(db)}, nil
}

func (r *SQLiteRegistry) Close() {
	r.stmtCache.Clear()
}

// RegisterProvider inserts or replaces a provider record.
func (r *SQLiteRegistry) RegisterProvider(p VaultProvider) error {
	stmt, err := r.stmtCache.Prepare(
		`INSERT OR REPLACE INTO vault_providers (address, btc_pubkey, rpc_url) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(p.Address.Hex(), p.BtcPubkey, p.RpcUrl)
	return err
}

// PutRosterSnapshot stores the keeper and challenger sets for one
// (provider, version). A snapshot is immutable once written; rewriting
// the same version replaces it wholesale.
func (r *SQLiteRegistry) PutRosterSnapshot(provider ethcommon.Address, version uint64, keepers []VaultKeeper, challengers []UniversalChallenger) error {
	del, err := r.stmtCache.Prepare(`DELETE FROM roster_members WHERE provider = ? AND version = ?`)
	if err != nil {
		return err
	}
	if _, err := del.Exec(provider.Hex(), version); err != nil {
		return err
	}

	ins, err := r.stmtCache.Prepare(
		`INSERT INTO roster_members (provider, version, role, address, btc_pubkey) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	for _, k := range keepers {
		if _, err := ins.Exec(provider.Hex(), version, roleKeeper, k.Address.Hex(), k.BtcPubkey); err != nil {
			return err
		}
	}
	for _, c := range challengers {
		if _, err := ins.Exec(provider.Hex(), version, roleChallenger, c.Address.Hex(), c.BtcPubkey); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRegistry) Provider(address ethcommon.Address) (*VaultProvider, error) {
	stmt, err := r.stmtCache.Prepare(
		`SELECT btc_pubkey, rpc_url FROM vault_providers WHERE address = ?`)
	if err != nil {
		return nil, err
	}

	p := VaultProvider{Address: address}
	if err := stmt.QueryRow(address.Hex()).Scan(&p.BtcPubkey, &p.RpcUrl); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRegistry) RosterAtVersion(address ethcommon.Address, version uint64) (*SigningRoster, error) {
	provider, err := r.Provider(address)
	if err != nil {
		return nil, err
	}

	stmt, err := r.stmtCache.Prepare(
		`SELECT role, address, btc_pubkey FROM roster_members WHERE provider = ? AND version = ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(address.Hex(), version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roster := &SigningRoster{Version: version, Provider: *provider}
	for rows.Next() {
		var role, addr, pubkey string
		if err := rows.Scan(&role, &addr, &pubkey); err != nil {
			return nil, err
		}
		switch role {
		case roleKeeper:
			roster.VaultKeepers = append(roster.VaultKeepers, VaultKeeper{
				Address: ethcommon.HexToAddress(addr), BtcPubkey: pubkey,
			})
		case roleChallenger:
			roster.UniversalChallengers = append(roster.UniversalChallengers, UniversalChallenger{
				Address: ethcommon.HexToAddress(addr), BtcPubkey: pubkey,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(roster.VaultKeepers) == 0 && len(roster.UniversalChallengers) == 0 {
		return nil, ErrVersionNotFound
	}
	return roster, nil
}

func (r *SQLiteRegistry) LatestVersion(address ethcommon.Address) (uint64, error) {
	stmt, err := r.stmtCache.Prepare(
		`SELECT MAX(version) FROM roster_members WHERE provider = ?`)
	if err != nil {
		return 0, err
	}

	var version sql.NullInt64
	if err := stmt.QueryRow(address.Hex()).Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, ErrVersionNotFound
	}
	return uint64(version.Int64), nil
}
