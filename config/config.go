package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"collateralcombat/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// NATS configuration
	NATSServers   string // NATS server addresses (comma-separated)
	CreditSubject string // request-reply subject of the balance collaborator

	// Price feed configuration
	PriceFeedURL string        // WebSocket endpoint of the price source
	MaxPriceAge  time.Duration // snapshots older than this are unverified

	// Binary round parameters
	RoundDuration    time.Duration
	LockBuffer       time.Duration // betting closes this long before settle
	RoundFeeBps      int64
	DrawThresholdBps int64
	RoundSymbol      string

	// Relative battle parameters
	BattleDuration    time.Duration
	BattleFeeBps      int64
	BattleSymbols     []string // exactly two
	MinSettlementPool int64

	// Elimination lobby parameters
	LobbyRegistration  time.Duration
	LobbyRoundDuration time.Duration
	LobbyMaxRounds     int
	LobbyFeeBps        int64
	LobbyMinEntrants   int
	LobbyMaxEntrants   int

	// Stake bounds, lamports
	MinStake int64
	MaxStake int64

	// GracePeriod bounds how long a contest waits for reference data at a
	// lock/settle boundary before voiding
	GracePeriod time.Duration

	// ArchiveAfter is how long settled contests linger before archiving
	ArchiveAfter time.Duration

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g. by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL from base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: getEnvWithDefault("DATABASE_NAME", "collateralcombat"),

		NATSServers:   getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		CreditSubject: getEnvWithDefault("CREDIT_SUBJECT", "accounts.credit"),

		PriceFeedURL: getEnvWithDefault("PRICE_FEED_URL", "wss://stream.binance.com:9443/ws"),
		MaxPriceAge:  durationEnv("MAX_PRICE_AGE", 60*time.Second),

		RoundDuration:    durationEnv("ROUND_DURATION", 30*time.Second),
		LockBuffer:       durationEnv("LOCK_BUFFER", 5*time.Second),
		RoundFeeBps:      int64Env("ROUND_FEE_BPS", 500),
		DrawThresholdBps: int64Env("DRAW_THRESHOLD_BPS", 10),
		RoundSymbol:      getEnvWithDefault("ROUND_SYMBOL", "SOLUSDT"),

		BattleDuration:    durationEnv("BATTLE_DURATION", 30*time.Minute),
		BattleFeeBps:      int64Env("BATTLE_FEE_BPS", 500),
		MinSettlementPool: int64Env("MIN_SETTLEMENT_POOL", 1_000_000),

		LobbyRegistration:  durationEnv("LOBBY_REGISTRATION", 5*time.Minute),
		LobbyRoundDuration: durationEnv("LOBBY_ROUND_DURATION", 60*time.Second),
		LobbyMaxRounds:     intEnv("LOBBY_MAX_ROUNDS", 10),
		LobbyFeeBps:        int64Env("LOBBY_FEE_BPS", 500),
		LobbyMinEntrants:   intEnv("LOBBY_MIN_ENTRANTS", 3),
		LobbyMaxEntrants:   intEnv("LOBBY_MAX_ENTRANTS", 100),

		MinStake: int64Env("MIN_STAKE", 10_000_000),      // 0.01 SOL
		MaxStake: int64Env("MAX_STAKE", 100_000_000_000), // 100 SOL

		GracePeriod:  durationEnv("GRACE_PERIOD", 2*time.Minute),
		ArchiveAfter: durationEnv("ARCHIVE_AFTER", 24*time.Hour),

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	config.BattleSymbols = splitEnv("BATTLE_SYMBOLS", []string{"SOLUSDT", "ETHUSDT"})

	if config.Environment != "test" && config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if len(config.BattleSymbols) != 2 {
		return nil, fmt.Errorf("BATTLE_SYMBOLS must name exactly two symbols")
	}
	if config.LockBuffer >= config.RoundDuration {
		return nil, fmt.Errorf("LOCK_BUFFER must be shorter than ROUND_DURATION")
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func int64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		NATSServers:        "nats://localhost:4222",
		CreditSubject:      "accounts.credit",
		MaxPriceAge:        time.Minute,
		RoundDuration:      30 * time.Second,
		LockBuffer:         5 * time.Second,
		RoundFeeBps:        500,
		DrawThresholdBps:   10,
		RoundSymbol:        "SOLUSDT",
		BattleDuration:     30 * time.Minute,
		BattleFeeBps:       500,
		BattleSymbols:      []string{"SOLUSDT", "ETHUSDT"},
		MinSettlementPool:  1_000_000,
		LobbyRegistration:  5 * time.Minute,
		LobbyRoundDuration: time.Minute,
		LobbyMaxRounds:     10,
		LobbyFeeBps:        500,
		LobbyMinEntrants:   3,
		LobbyMaxEntrants:   100,
		MinStake:           10_000_000,
		MaxStake:           100_000_000_000,
		GracePeriod:        2 * time.Minute,
		ArchiveAfter:       24 * time.Hour,
	}
}
