package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Cron   CronConfig   `mapstructure:"cron"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Oracle OracleConfig `mapstructure:"oracle"`
	Keeper KeeperConfig `mapstructure:"keeper"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig is optional. An empty Addr keeps the oracle cache and the
// signing-identity lock in process.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AutoManage string `mapstructure:"auto_manage"`
}

type LedgerConfig struct {
	NodeURL        string        `mapstructure:"node_url"`
	APIKey         string        `mapstructure:"api_key"`
	ModuleAddress  string        `mapstructure:"module_address"`
	ModuleName     string        `mapstructure:"module_name"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxGasAmount   uint64        `mapstructure:"max_gas_amount"`
	GasUnitPrice   uint64        `mapstructure:"gas_unit_price"`
	TxTTL          time.Duration `mapstructure:"tx_ttl"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	// ChainID zero is read from the node.
	ChainID uint8 `mapstructure:"chain_id"`
}

type OracleConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	FeedID   string        `mapstructure:"feed_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type KeeperConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	// Address overrides the account derived from PrivateKey, for accounts
	// whose authentication key was rotated.
	Address          string        `mapstructure:"address"`
	RoundDuration    time.Duration `mapstructure:"round_duration"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	FeeBasisPoints   uint64        `mapstructure:"fee_basis_points"`
	Treasury         string        `mapstructure:"treasury"`
	ClaimLookback    int           `mapstructure:"claim_lookback"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	ResumeOnStartup  bool          `mapstructure:"resume_on_startup"`
	AutoManageEnable bool          `mapstructure:"auto_manage_enabled"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.auto_manage", "@every 15s")

	v.SetDefault("ledger.node_url", "https://fullnode.testnet.aptoslabs.com")
	v.SetDefault("ledger.api_key", "")
	v.SetDefault("ledger.module_address", "")
	v.SetDefault("ledger.module_name", "betting")
	v.SetDefault("ledger.timeout", "15s")
	v.SetDefault("ledger.confirm_timeout", "30s")
	v.SetDefault("ledger.poll_interval", "500ms")
	v.SetDefault("ledger.max_gas_amount", 20000)
	v.SetDefault("ledger.gas_unit_price", 100)
	v.SetDefault("ledger.tx_ttl", "60s")
	v.SetDefault("ledger.max_attempts", 3)
	v.SetDefault("ledger.retry_backoff", "1s")
	v.SetDefault("ledger.chain_id", 0)

	v.SetDefault("oracle.endpoint", "https://hermes.pyth.network")
	v.SetDefault("oracle.feed_id", "")
	v.SetDefault("oracle.timeout", "10s")
	v.SetDefault("oracle.cache_ttl", "1s")

	v.SetDefault("keeper.private_key", "")
	v.SetDefault("keeper.address", "")
	v.SetDefault("keeper.round_duration", "300s")
	v.SetDefault("keeper.cooldown", "5s")
	v.SetDefault("keeper.fee_basis_points", 200)
	v.SetDefault("keeper.treasury", "")
	v.SetDefault("keeper.claim_lookback", 20)
	v.SetDefault("keeper.lock_ttl", "2m")
	v.SetDefault("keeper.resume_on_startup", true)
	v.SetDefault("keeper.auto_manage_enabled", true)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "roundkeeper")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
