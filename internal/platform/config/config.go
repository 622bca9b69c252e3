package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "attesto/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	DatabaseURL   string
	AutoMigrate   bool
	RedisURL      string
	KafkaBrokers  string
	TopicPrefix   string

	Wallet     Wallet
	Identity   Identity
	Credential Credential
}

// Wallet tunes the vault.
type Wallet struct {
	SessionTimeout   time.Duration
	MaxFailedUnlocks int
	LockoutDuration  time.Duration
	BackupOnCreate   bool
	DefaultDIDMethod string
	EventBufferSize  int
}

// Identity tunes the identity manager.
type Identity struct {
	MinPassphraseLength int
	DIDCacheSize        int
	DIDCacheTTL         time.Duration
	DIDWebDomain        string
	KDFTime             uint32
	KDFMemoryKiB        uint32
	KDFThreads          uint8
}

// Credential tunes the credential engine.
type Credential struct {
	ValidityDays      int
	StatusListBaseURL string
	StatusListLength  uint
	TrustedIssuers    []string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ATTESTO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		LogLevel:      envString("LOG_LEVEL", "info"),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     envString("JWT_ISSUER", "attesto"),
		JWTAudience:   envString("JWT_AUDIENCE", "attesto-api"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AutoMigrate:   os.Getenv("ATTESTO_AUTO_MIGRATE") == "true",
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  os.Getenv("KAFKA_BROKERS"),
		TopicPrefix:   envString("KAFKA_TOPIC_PREFIX", "attesto"),
		Wallet: Wallet{
			SessionTimeout:   envDuration("WALLET_SESSION_TIMEOUT", 15*time.Minute),
			MaxFailedUnlocks: envInt("WALLET_MAX_FAILED_UNLOCKS", 5),
			LockoutDuration:  envDuration("WALLET_LOCKOUT_DURATION", 30*time.Minute),
			BackupOnCreate:   os.Getenv("WALLET_BACKUP_ON_CREATE") == "true",
			DefaultDIDMethod: envString("WALLET_DEFAULT_DID_METHOD", "key"),
			EventBufferSize:  envInt("EVENT_BUFFER_SIZE", 256),
		},
		Identity: Identity{
			MinPassphraseLength: envInt("WALLET_MIN_PASSPHRASE_LENGTH", 12),
			DIDCacheSize:        envInt("DID_CACHE_SIZE", 1024),
			DIDCacheTTL:         envDuration("DID_CACHE_TTL", 5*time.Minute),
			DIDWebDomain:        envString("DID_WEB_DOMAIN", "localhost"),
			KDFTime:             uint32(envInt("KDF_TIME", 3)),
			KDFMemoryKiB:        uint32(envInt("KDF_MEMORY_KIB", 64*1024)),
			KDFThreads:          uint8(envInt("KDF_THREADS", 2)),
		},
		Credential: Credential{
			ValidityDays:      envInt("CREDENTIAL_VALIDITY_DAYS", 365),
			StatusListBaseURL: envString("STATUS_LIST_BASE_URL", "http://localhost:8080"),
			StatusListLength:  uint(envInt("STATUS_LIST_LENGTH", 131072)),
			TrustedIssuers:    envList("TRUSTED_ISSUERS"),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	out := strutil.DedupeAndTrim(strings.Split(os.Getenv(key), ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
