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
	Cron   CronConfig   `mapstructure:"cron"`
	Market MarketConfig `mapstructure:"market"`
	Events EventsConfig `mapstructure:"events"`
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

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	FinalizeSweep  string `mapstructure:"finalize_sweep"`
	ApprovalSweep  string `mapstructure:"approval_sweep"`
	TransferRunner string `mapstructure:"transfer_runner"`
	SweepBatchSize int    `mapstructure:"sweep_batch_size"`
}

// MarketConfig carries defaults for the externally mutable market
// parameters. Rows in the parameters table override these per key; the
// engine reads the merged view at the time of each operation, so a
// parameter change affects subsequent operations only.
type MarketConfig struct {
	MinCreatorBond       string        `mapstructure:"min_creator_bond"`
	MinimumBet           string        `mapstructure:"minimum_bet"`
	MaximumBet           string        `mapstructure:"maximum_bet"`
	ProtocolFeeBps       int64         `mapstructure:"protocol_fee_bps"`
	CreatorFeeBps        int64         `mapstructure:"creator_fee_bps"`
	DisputeWindow        time.Duration `mapstructure:"dispute_window"`
	MinDisputeBond       string        `mapstructure:"min_dispute_bond"`
	MaxResolutionHorizon time.Duration `mapstructure:"max_resolution_horizon"`
	ApprovalWindow       time.Duration `mapstructure:"approval_window"`
	AgreementThreshold   int           `mapstructure:"agreement_threshold"`
	DisagreementLow      int           `mapstructure:"disagreement_low"`
	DisagreementHigh     int           `mapstructure:"disagreement_high"`
	MarketCreationActive bool          `mapstructure:"market_creation_active"`
	EmergencyPause       bool          `mapstructure:"emergency_pause"`
	BondPolicyOnReject   string        `mapstructure:"bond_policy_on_reject"`
	BondPolicyOnCancel   string        `mapstructure:"bond_policy_on_cancel"`
	DisputeSignalReplace bool          `mapstructure:"dispute_signal_replace"`
	Treasury             string        `mapstructure:"treasury"`
}

type EventsConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PM")
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
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.finalize_sweep", "@every 1m")
	v.SetDefault("cron.approval_sweep", "@every 10m")
	v.SetDefault("cron.transfer_runner", "@every 30s")
	v.SetDefault("cron.sweep_batch_size", 100)

	// Amounts are integral base units kept as strings so they survive
	// yaml/env round trips without float truncation.
	v.SetDefault("market.min_creator_bond", "100000000000000000") // 0.1
	v.SetDefault("market.minimum_bet", "10000000000000000")       // 0.01
	v.SetDefault("market.maximum_bet", "100000000000000000000")   // 100
	v.SetDefault("market.protocol_fee_bps", 250)
	v.SetDefault("market.creator_fee_bps", 150)
	v.SetDefault("market.dispute_window", "48h")
	v.SetDefault("market.min_dispute_bond", "10000000000000000")
	v.SetDefault("market.max_resolution_horizon", "8760h") // 365 days
	v.SetDefault("market.approval_window", "24h")
	v.SetDefault("market.agreement_threshold", 75)
	v.SetDefault("market.disagreement_low", 40)
	v.SetDefault("market.disagreement_high", 60)
	v.SetDefault("market.market_creation_active", true)
	v.SetDefault("market.emergency_pause", false)
	v.SetDefault("market.bond_policy_on_reject", "slash")
	v.SetDefault("market.bond_policy_on_cancel", "refund")
	v.SetDefault("market.dispute_signal_replace", false)
	v.SetDefault("market.treasury", "treasury")

	v.SetDefault("events.subscriber_buffer", 64)

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
