package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	LedgerSimulator = "simulator"
	LedgerChain     = "chain"
)

// Journal backends for the simulator.
const (
	JournalMemory = "memory"
	JournalMongo  = "mongo"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Graph    GraphConfig
	Logging  LoggingConfig
	Registry RegistryConfig
	Chain    ChainConfig
	Events   EventsConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MetricsEnabled    bool
	AllowedOriginsCSV string
	// APIToken, when set, is required as a bearer token on mutating routes.
	APIToken string
}

// GraphConfig describes connectivity to the optional Neo4j read model.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// Enabled reports whether a graph URI is configured.
func (g GraphConfig) Enabled() bool {
	return g.URI != ""
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

// RegistryConfig configures the in-process registry and the certificate service.
type RegistryConfig struct {
	Admin           common.Address
	Journal         string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	EnforceRoles    bool
	VerifyCacheSize int
	VerifyCacheTTL  time.Duration
}

// ChainConfig selects the ledger backend and the on-chain contract.
type ChainConfig struct {
	Mode            string
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	TxTimeout       time.Duration
}

// EventsConfig configures the AMQP event publisher.
type EventsConfig struct {
	AMQPURL       string
	Exchange      string
	RoutingPrefix string
}

// Enabled reports whether an AMQP URL is configured.
func (e EventsConfig) Enabled() bool {
	return e.AMQPURL != ""
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultMongoDatabase    = "blockcred"
	defaultMongoCollection  = "registry_journal"
	defaultCacheSize        = 1024
	defaultCacheTTL         = 5 * time.Minute
	defaultTxTimeout        = 2 * time.Minute
	defaultExchange         = "blockcred.events"
	defaultRoutingPrefix    = "registry"

	// defaultAdmin is the first account of a fresh development chain.
	defaultAdmin = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"
)

// LoadDotEnv loads variables from the given .env files without overriding
// the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			MetricsEnabled:    parseBoolWithDefault("SERVER_METRICS_ENABLED", false),
			AllowedOriginsCSV: os.Getenv("SERVER_ALLOWED_ORIGINS"),
			APIToken:          os.Getenv("SERVER_API_TOKEN"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Registry: RegistryConfig{
			Journal:         strings.ToLower(valueOrDefault("REGISTRY_JOURNAL", JournalMemory)),
			MongoURI:        os.Getenv("MONGO_URI"),
			MongoDatabase:   valueOrDefault("MONGO_DATABASE", defaultMongoDatabase),
			MongoCollection: valueOrDefault("MONGO_COLLECTION", defaultMongoCollection),
			EnforceRoles:    parseBoolWithDefault("REGISTRY_ENFORCE_ROLES", false),
			VerifyCacheSize: parseIntWithDefault("VERIFY_CACHE_SIZE", defaultCacheSize),
		},
		Chain: ChainConfig{
			Mode:            strings.ToLower(valueOrDefault("LEDGER_MODE", LedgerSimulator)),
			RPCURL:          os.Getenv("BLOCKCHAIN_RPC_URL"),
			ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
			PrivateKey:      os.Getenv("PRIVATE_KEY"),
		},
		Events: EventsConfig{
			AMQPURL:       os.Getenv("AMQP_URL"),
			Exchange:      valueOrDefault("AMQP_EXCHANGE", defaultExchange),
			RoutingPrefix: valueOrDefault("AMQP_ROUTING_PREFIX", defaultRoutingPrefix),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"VERIFY_CACHE_TTL", defaultCacheTTL, &cfg.Registry.VerifyCacheTTL},
		{"CHAIN_TX_TIMEOUT", defaultTxTimeout, &cfg.Chain.TxTimeout},
	}
	for _, d := range durations {
		val, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = val
	}

	admin := valueOrDefault("REGISTRY_ADMIN_ADDRESS", defaultAdmin)
	if !common.IsHexAddress(admin) {
		return Config{}, fmt.Errorf("invalid REGISTRY_ADMIN_ADDRESS %q", admin)
	}
	cfg.Registry.Admin = common.HexToAddress(admin)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Registry.Journal {
	case JournalMemory:
	case JournalMongo:
		if c.Registry.MongoURI == "" {
			return errors.New("MONGO_URI is required when REGISTRY_JOURNAL=mongo")
		}
	default:
		return fmt.Errorf("invalid REGISTRY_JOURNAL %q (want memory or mongo)", c.Registry.Journal)
	}

	switch c.Chain.Mode {
	case LedgerSimulator:
	case LedgerChain:
		if c.Chain.RPCURL == "" {
			return errors.New("BLOCKCHAIN_RPC_URL is required when LEDGER_MODE=chain")
		}
		if !common.IsHexAddress(c.Chain.ContractAddress) {
			return fmt.Errorf("invalid CONTRACT_ADDRESS %q", c.Chain.ContractAddress)
		}
		if c.Chain.PrivateKey == "" {
			return errors.New("PRIVATE_KEY is required when LEDGER_MODE=chain")
		}
	default:
		return fmt.Errorf("invalid LEDGER_MODE %q (want simulator or chain)", c.Chain.Mode)
	}

	if c.Registry.VerifyCacheSize <= 0 {
		return fmt.Errorf("VERIFY_CACHE_SIZE must be positive, got %d", c.Registry.VerifyCacheSize)
	}
	return nil
}

// AllowedOrigins splits the CSV origin list.
func (h HTTPConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(h.AllowedOriginsCSV, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
