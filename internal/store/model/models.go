package model

import "gorm.io/datatypes"

// TradeEventModel is one append-only audit row. Prices and order payloads
// arrive already formatted; the store never interprets them.
type TradeEventModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;index"`
	EventType     string         `gorm:"column:event_type;index"`
	Message       string         `gorm:"column:message"`
	OrderID       string         `gorm:"column:order_id"`
	Payload       datatypes.JSON `gorm:"column:payload;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (TradeEventModel) TableName() string { return "trade_events" }

// TradeRecordModel tracks one signal from armed watch to closed position.
// Prices are stored as decimal text to keep them exact.
type TradeRecordModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	Symbol        string `gorm:"column:symbol;index"`
	Status        string `gorm:"column:status;index"`
	TriggerPrice  string `gorm:"column:trigger_price"`
	StopPrice     string `gorm:"column:stop_price"`
	EntryPrice    string `gorm:"column:entry_price"`
	ExitPrice     string `gorm:"column:exit_price"`
	ExitReason    string `gorm:"column:exit_reason"`
	Quantity      int    `gorm:"column:quantity"`
	BuyOrderID    string `gorm:"column:buy_order_id"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
	ClosedAtUnix  *int64 `gorm:"column:closed_at"`
}

func (TradeRecordModel) TableName() string { return "trade_records" }

// AppSettingsModel is a single-row table (id = 1) holding the runtime
// tunable settings.
type AppSettingsModel struct {
	ID                int64  `gorm:"column:id;primaryKey"`
	FixedBudgetUSD    string `gorm:"column:fixed_budget_usd"`
	TakeProfitPercent string `gorm:"column:take_profit_percent"`
	RegexEnabled      int    `gorm:"column:regex_enabled"`
	AIEnabled         int    `gorm:"column:ai_enabled"`
	ExtendedHours     int    `gorm:"column:extended_hours"`
	MaxSpreadBps      int    `gorm:"column:max_spread_bps"`
	UpdatedAtUnix     int64  `gorm:"column:updated_at"`
}

func (AppSettingsModel) TableName() string { return "app_settings" }
