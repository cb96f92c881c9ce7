package roster

const providerTable = `
CREATE TABLE IF NOT EXISTS vault_providers (
	address TEXT PRIMARY KEY,
	btc_pubkey TEXT NOT NULL,
	rpc_url TEXT NOT NULL
);
`

const rosterMemberTable = `
CREATE TABLE IF NOT EXISTS roster_members (
	provider TEXT NOT NULL,
	version INTEGER NOT NULL,
	role TEXT NOT NULL,
	address TEXT NOT NULL,
	btc_pubkey TEXT NOT NULL,
	PRIMARY KEY (provider, version, role, address)
);
CREATE INDEX IF NOT EXISTS idx_roster_provider_version ON roster_members(provider, version);
`

const (
	roleKeeper     = "keeper"
	roleChallenger = "challenger"
)
