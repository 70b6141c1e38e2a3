package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func validate(c *Config) error {
	if err := c.Alpaca.validate(); err != nil {
		return err
	}
	if err := c.Trade.validate(); err != nil {
		return err
	}
	if err := c.Parser.validate(); err != nil {
		return err
	}
	if err := c.Telegram.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AlpacaConfig) validate() error {
	if strings.TrimSpace(a.KeyID) == "" || strings.TrimSpace(a.SecretKey) == "" {
		return fmt.Errorf("alpaca credentials missing (set ALPACA_API_KEY_ID / ALPACA_API_SECRET_KEY)")
	}
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("alpaca.base_url cannot be empty")
	}
	if strings.TrimSpace(a.DataURL) == "" {
		return fmt.Errorf("alpaca.data_url cannot be empty")
	}
	return nil
}

func (t *TradeConfig) validate() error {
	budget, err := decimal.NewFromString(strings.TrimSpace(t.FixedBudgetUSD))
	if err != nil || budget.Sign() <= 0 {
		return fmt.Errorf("trade.fixed_budget_usd must be a decimal > 0")
	}
	tp, err := decimal.NewFromString(strings.TrimSpace(t.TakeProfitPercent))
	if err != nil || tp.Sign() <= 0 {
		return fmt.Errorf("trade.tp_percent must be a decimal > 0")
	}
	if t.MaxSpreadBps < 0 {
		return fmt.Errorf("trade.max_spread_bps must be >= 0")
	}
	return nil
}

func (p *ParserConfig) validate() error {
	if !p.RegexEnabled && !p.AIEnabled {
		return fmt.Errorf("parser: at least one of regex_enabled / ai_enabled must be set")
	}
	if p.AIEnabled && strings.TrimSpace(p.AI.APIURL) == "" {
		return fmt.Errorf("parser.ai.api_url cannot be empty when AI parsing is enabled")
	}
	if p.AIEnabled && strings.TrimSpace(p.AI.APIKey) == "" {
		return fmt.Errorf("parser.ai api key missing (set OPENAI_API_KEY)")
	}
	return nil
}

func (t *TelegramConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("telegram.bot_token missing (set TELEGRAM_BOT_TOKEN)")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id cannot be 0 when telegram ingest is enabled")
	}
	return nil
}
