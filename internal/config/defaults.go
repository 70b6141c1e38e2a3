package config

import "strings"

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":8090"
	defaultAlpacaBase    = "https://paper-api.alpaca.markets"
	defaultAlpacaData    = "https://data.alpaca.markets/v2"
	defaultAlpacaTimeout = 20
	defaultTPPercent     = "5.00"
	defaultAIAPIURL      = "https://api.openai.com/v1/chat/completions"
	defaultAIModel       = "gpt-4o-mini"
	defaultAITimeout     = 30
	defaultPollMS        = 1200
	defaultWatchTimeout  = 15
	defaultReconcilePoll = 10
	defaultLookback      = 60
	defaultStorePath     = "data/tradingbot.db"
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.Alpaca.BaseURL == "" {
		c.Alpaca.BaseURL = defaultAlpacaBase
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = defaultAlpacaData
	}
	if c.Alpaca.TimeoutSeconds <= 0 {
		c.Alpaca.TimeoutSeconds = defaultAlpacaTimeout
	}
	if strings.TrimSpace(c.Trade.TakeProfitPercent) == "" {
		c.Trade.TakeProfitPercent = defaultTPPercent
	}
	if c.Parser.AI.APIURL == "" {
		c.Parser.AI.APIURL = defaultAIAPIURL
	}
	if c.Parser.AI.Model == "" {
		c.Parser.AI.Model = defaultAIModel
	}
	if c.Parser.AI.TimeoutSeconds <= 0 {
		c.Parser.AI.TimeoutSeconds = defaultAITimeout
	}
	if c.Watcher.PollIntervalMS <= 0 {
		c.Watcher.PollIntervalMS = defaultPollMS
	}
	if c.Watcher.TimeoutMinutes <= 0 {
		c.Watcher.TimeoutMinutes = defaultWatchTimeout
	}
	if c.Reconciler.PollSeconds <= 0 {
		c.Reconciler.PollSeconds = defaultReconcilePoll
	}
	if c.Reconciler.LookbackMinutes <= 0 {
		c.Reconciler.LookbackMinutes = defaultLookback
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
}
