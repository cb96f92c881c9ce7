package pendingstore

const pendingOpsTable = `
CREATE TABLE IF NOT EXISTS pending_operations (
	account TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`
