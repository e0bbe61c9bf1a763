package providers

import (
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kbunet/talentchain/internal/config"
	"github.com/kbunet/talentchain/internal/infrastructure/database"
	"github.com/kbunet/talentchain/internal/infrastructure/gateway"
	"github.com/kbunet/talentchain/internal/usecase"
)

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewRedis creates a redis client.
func NewRedis(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
}

// NewMemcache creates a memcache client.
func NewMemcache(addr string) *memcache.Client {
	return database.NewMemcached(addr)
}

// NewMetadataStore constructs the IPFS-backed metadata store.
func NewMetadataStore(conf config.Ipfs, cache *memcache.Client) *gateway.IPFSStore {
	return gateway.NewIPFSStore(conf.APIAddr, cache, conf.FailPolicy)
}

// NewLedger selects the ledger backend from configuration.
func NewLedger(conf config.Ledger, nodeAddress string) (usecase.Ledger, error) {
	switch conf.Backend {
	case "profile":
		return gateway.NewProfileLedger(conf.RPCURL, nodeAddress, conf.FailPolicy), nil
	case "contract":
		return gateway.NewContractLedger(conf.RPCURL, conf.ContractAddress, conf.SignerKey, conf.ChainID, conf.FailPolicy)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", conf.Backend)
	}
}
