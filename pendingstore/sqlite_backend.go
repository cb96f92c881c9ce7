package pendingstore

import (
	"database/sql"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bitlend-io/vault-go/database"
)

// SQLiteBackend persists one payload row per account. It is the durable
// counterpart of the browser's local storage.
type SQLiteBackend struct {
	stmtCache *database.StmtCache
}

func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	if _, err := db.Exec(pendingOpsTable); err != nil {
		return nil, err
	}
	return &SQLiteBackend{stmtCache: database.NewStmtCache(db)}, nil
}

func (b *SQLiteBackend) Close() {
	b.stmtCache.Clear()
}

func (b *SQLiteBackend) Load(account ethcommon.Address) ([]byte, bool, error) {
	stmt, err := b.stmtCache.Prepare(`SELECT payload FROM pending_operations WHERE account = ?`)
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	if err := stmt.QueryRow(account.Hex()).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (b *SQLiteBackend) Save(account ethcommon.Address, payload []byte) error {
	stmt, err := b.stmtCache.Prepare(
		`INSERT OR REPLACE INTO pending_operations (account, payload, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(account.Hex(), payload, time.Now().Unix())
	return err
}

func (b *SQLiteBackend) Clear(account ethcommon.Address) error {
	stmt, err := b.stmtCache.Prepare(`DELETE FROM pending_operations WHERE account = ?`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(account.Hex())
	return err
}
