package main

import (
	credservice "attesto/internal/credential/service"
	credstore "attesto/internal/credential/store"
	idstore "attesto/internal/identity/store"
	"attesto/internal/platform/database"
	"attesto/internal/platform/redis"
	"attesto/internal/wallet/lockout"
	"attesto/internal/wallet/session"
	walletservice "attesto/internal/wallet/service"
	walletstore "attesto/internal/wallet/store"
)

// backends picks Postgres for durable records and Redis for cross-instance
// session, lockout and revocation state, falling back to in-process stores
// for whichever is not configured.
type backends struct {
	identityDIDs idstore.DIDStore
	identityDocs idstore.DocumentStore
	identityKeys idstore.KeyStore
	credentials  credservice.Stores
	wallets      walletservice.Stores
	lockouts     lockout.Store
	names        map[string]string
}

func buildBackends(pool *database.Pool, rc *redis.Client) *backends {
	b := &backends{names: map[string]string{}}

	if pool != nil {
		db := pool.DB()
		b.identityDIDs = idstore.NewPostgresDIDStore(db)
		b.identityDocs = idstore.NewPostgresDocumentStore(db)
		b.identityKeys = idstore.NewPostgresKeyStore(db)
		b.credentials = credservice.Stores{
			Credentials:   credstore.NewPostgresCredentialStore(db),
			Revocations:   credstore.NewPostgresRevocationStore(db),
			StatusLists:   credstore.NewPostgresStatusListStore(db),
			Schemas:       credstore.NewPostgresSchemaStore(db),
			Presentations: credstore.NewPostgresPresentationStore(db),
		}
		b.wallets.Wallets = walletstore.NewPostgresWalletStore(db)
		b.wallets.Backups = walletstore.NewPostgresBackupStore(db)
		b.names["records"] = "postgres"
		b.names["revocations"] = "postgres"
	} else {
		b.identityDIDs = idstore.NewInMemoryDIDStore()
		b.identityDocs = idstore.NewInMemoryDocumentStore()
		b.identityKeys = idstore.NewInMemoryKeyStore()
		b.credentials = credservice.Stores{
			Credentials:   credstore.NewInMemoryCredentialStore(),
			Revocations:   credstore.NewInMemoryRevocationStore(),
			StatusLists:   credstore.NewInMemoryStatusListStore(),
			Schemas:       credstore.NewInMemorySchemaStore(),
			Presentations: credstore.NewInMemoryPresentationStore(),
		}
		b.wallets.Wallets = walletstore.NewInMemoryWalletStore()
		b.wallets.Backups = walletstore.NewInMemoryBackupStore()
		b.names["records"] = "memory"
		b.names["revocations"] = "memory"
	}

	if rc != nil {
		b.wallets.Sessions = session.NewRedisStore(rc.Client)
		b.lockouts = lockout.NewRedisStore(rc.Client)
		b.names["wallet_sessions"] = "redis"
		b.names["lockouts"] = "redis"
		if pool == nil {
			b.credentials.Revocations = credstore.NewRedisRevocationStore(rc.Client)
			b.names["revocations"] = "redis"
		}
	} else {
		b.wallets.Sessions = session.NewInMemoryStore()
		b.lockouts = lockout.NewInMemoryStore()
		b.names["wallet_sessions"] = "memory"
		b.names["lockouts"] = "memory"
	}
	return b
}
