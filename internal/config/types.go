package config

// Config is the top-level configuration carrier for the bot.
type Config struct {
	App        AppConfig        `toml:"app"`
	Alpaca     AlpacaConfig     `toml:"alpaca"`
	Trade      TradeConfig      `toml:"trade"`
	Parser     ParserConfig     `toml:"parser"`
	Watcher    WatcherConfig    `toml:"watcher"`
	Reconciler ReconcilerConfig `toml:"reconciler"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Store      StoreConfig      `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// AlpacaConfig describes the brokerage REST endpoints. The two credential
// headers come from ALPACA_API_KEY_ID / ALPACA_API_SECRET_KEY env vars.
type AlpacaConfig struct {
	BaseURL        string `toml:"base_url"`
	DataURL        string `toml:"data_url"`
	KeyID          string `toml:"key_id"`
	SecretKey      string `toml:"secret_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TradeConfig seeds the runtime settings row on first start. Money and
// percent values are decimal text so nothing passes through binary floats.
type TradeConfig struct {
	FixedBudgetUSD    string `toml:"fixed_budget_usd"`
	TakeProfitPercent string `toml:"tp_percent"`
	ExtendedHours     bool   `toml:"extended_hours"`
	MaxSpreadBps      int    `toml:"max_spread_bps"`
	ShiftStopWithFill bool   `toml:"shift_stop_with_fill"`
}

type ParserConfig struct {
	RegexEnabled bool     `toml:"regex_enabled"`
	AIEnabled    bool     `toml:"ai_enabled"`
	AI           AIConfig `toml:"ai"`
}

type AIConfig struct {
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type WatcherConfig struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	TimeoutMinutes int `toml:"timeout_minutes"`
}

type ReconcilerConfig struct {
	PollSeconds     int `toml:"poll_seconds"`
	LookbackMinutes int `toml:"lookback_minutes"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   int64  `toml:"chat_id"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}
