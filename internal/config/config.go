// Package config is the ambient configuration layer: a viper-backed,
// hot-reloadable config.yaml plus .env-sourced secrets, generalized from
// the teacher's config.Manager to the trading core's own domain
// (wallet/RPC/aggregator/daemon/strategy settings instead of the
// teacher's DEX-bot settings).
package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds every tunable setting the core reads at startup or on
// hot-reload.
type Config struct {
	Wallet    WalletConfig    `mapstructure:"wallet"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	Jupiter   JupiterConfig   `mapstructure:"jupiter"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Transport TransportConfig `mapstructure:"transport"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

type WalletConfig struct {
	PrivateKeyEnv string `mapstructure:"private_key_env"`
}

type RPCConfig struct {
	PrimaryURL        string `mapstructure:"primary_url"`
	PrimaryAPIKeyEnv  string `mapstructure:"primary_api_key_env"`
	FallbackURL       string `mapstructure:"fallback_url"`
	FallbackAPIKeyEnv string `mapstructure:"fallback_api_key_env"`
}

type JupiterConfig struct {
	QuoteAPIURL        string `mapstructure:"quote_api_url"`
	PriceAPIURL        string `mapstructure:"price_api_url"`
	PriceWSURL         string `mapstructure:"price_ws_url"`
	APIKeyEnv          string `mapstructure:"api_key_env"`
	DefaultSlippageBps int    `mapstructure:"default_slippage_bps"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

// PolicyConfig seeds policy.Config at startup; the active strategy stored
// in the ledger can still narrow the max trade size further.
type PolicyConfig struct {
	MaxSlippageBps        int     `mapstructure:"max_slippage_bps"`
	MaxTradeUSD           float64 `mapstructure:"max_trade_usd"`
	MinRugcheckScore      int     `mapstructure:"min_rugcheck_score"`
	RequireMintDisabled   bool    `mapstructure:"require_mint_disabled"`
	RequireFreezeDisabled bool    `mapstructure:"require_freeze_disabled"`
}

type DaemonConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
	DataDir    string `mapstructure:"data_dir"`
}

type RedisConfig struct {
	URLEnv string `mapstructure:"url_env"`
}

type TransportConfig struct {
	RESTListenAddr string `mapstructure:"rest_listen_addr"`
}

// DiscoveryConfig feeds the Pump.fun new-launch stream that backs
// recent_launches.
type DiscoveryConfig struct {
	PumpFunAPIKeyEnv string `mapstructure:"pumpfun_api_key_env"`
}

// Manager handles config loading and hot-reload, same shape as the
// teacher's.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
}

// LoadDotenv loads process-start secrets (JUPITER_API_KEY,
// SOLANA_PRIVATE_KEY, REDIS_URL) from a .env file if present. Missing
// .env is not an error — secrets may already be in the environment.
func LoadDotenv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("config: failed to load .env")
	}
}

// NewManager creates a new config manager from configPath.
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("wallet.private_key_env", "SOLANA_PRIVATE_KEY")
	v.SetDefault("rpc.primary_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.primary_api_key_env", "HELIUS_API_KEY")
	v.SetDefault("rpc.fallback_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.fallback_api_key_env", "SHYFT_API_KEY")
	v.SetDefault("jupiter.quote_api_url", "https://lite-api.jup.ag/swap/v1")
	v.SetDefault("jupiter.price_api_url", "https://lite-api.jup.ag/price/v2")
	v.SetDefault("jupiter.api_key_env", "JUPITER_API_KEY")
	v.SetDefault("jupiter.default_slippage_bps", 50)
	v.SetDefault("jupiter.timeout_seconds", 10)
	v.SetDefault("policy.max_slippage_bps", 300)
	v.SetDefault("policy.max_trade_usd", 500.0)
	v.SetDefault("policy.min_rugcheck_score", 50)
	v.SetDefault("policy.require_mint_disabled", true)
	v.SetDefault("policy.require_freeze_disabled", true)
	v.SetDefault("daemon.poll_interval_seconds", 15)
	v.SetDefault("storage.sqlite_path", "./data/slopesniper.db")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("redis.url_env", "REDIS_URL")
	v.SetDefault("transport.rest_listen_addr", ":8787")
	v.SetDefault("discovery.pumpfun_api_key_env", "PUMPFUN_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	m := &Manager{config: &cfg, viper: v}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config: file changed, reloading")
		m.reload()
	})

	return m, nil
}

// Get returns the current config (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetOnChange registers a callback invoked after every hot-reload.
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("config: failed to unmarshal on reload")
		return
	}
	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// PrivateKey loads the wallet private key from its configured env var.
func (m *Manager) PrivateKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Wallet.PrivateKeyEnv)
}

// RedisURL loads the Redis connection string from its configured env
// var, empty if unset (pricecache.New treats that as "no Redis").
func (m *Manager) RedisURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Redis.URLEnv)
}

// PrimaryRPCURL returns the primary Solana RPC URL with its API key
// injected as a query param, if one is configured.
func (m *Manager) PrimaryRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return withAPIKey(m.config.RPC.PrimaryURL, os.Getenv(m.config.RPC.PrimaryAPIKeyEnv), "api-key")
}

// FallbackRPCURL returns the fallback Solana RPC URL with its API key
// injected, mirroring the primary/fallback idiom pricecache also uses.
func (m *Manager) FallbackRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return withAPIKey(m.config.RPC.FallbackURL, os.Getenv(m.config.RPC.FallbackAPIKeyEnv), "api_key")
}

// JupiterAPIKey loads the Jupiter aggregator API key from its
// configured env var, empty string if the free tier is being used.
func (m *Manager) JupiterAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Jupiter.APIKeyEnv)
}

// PumpFunAPIKey loads the Pump.fun stream API key, empty string if the
// free tier is being used.
func (m *Manager) PumpFunAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Discovery.PumpFunAPIKeyEnv)
}

// DaemonInterval returns the configured poll interval as a Duration.
func (m *Manager) DaemonInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Daemon.PollIntervalSeconds) * time.Second
}

func withAPIKey(url, key, param string) string {
	if key == "" {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&" + param + "=" + key
	}
	return url + "?" + param + "=" + key
}
