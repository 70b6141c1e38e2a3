package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	storemodel "github.com/iMOD07/AlpacaTradingBot/internal/store/model"
)

// Trade record lifecycle statuses.
const (
	RecordArmed    = "ARMED"
	RecordFilled   = "FILLED"
	RecordClosedTP = "CLOSED_TP"
	RecordClosedSL = "CLOSED_SL"
)

// TradeRecord is one signal lifecycle row as read back from the store.
type TradeRecord struct {
	ID           int64
	Symbol       string
	Status       string
	TriggerPrice string
	StopPrice    string
	EntryPrice   string
	ExitPrice    string
	ExitReason   string
	Quantity     int
	BuyOrderID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// RecordSignal opens a new lifecycle row in the ARMED state.
func (s *Store) RecordSignal(ctx context.Context, symbol string, trigger, stop decimal.Decimal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	now := time.Now().UnixMilli()
	m := storemodel.TradeRecordModel{
		Symbol:        strings.ToUpper(strings.TrimSpace(symbol)),
		Status:        RecordArmed,
		TriggerPrice:  trigger.String(),
		StopPrice:     stop.String(),
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// RecordEntry promotes the most recent ARMED row for symbol to FILLED. A
// row is created directly in FILLED if none is armed, so entries observed
// after a restart are not lost.
func (s *Store) RecordEntry(ctx context.Context, symbol string, execPrice decimal.Decimal, qty int, buyOrderID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	now := time.Now().UnixMilli()
	updates := map[string]interface{}{
		"status":       RecordFilled,
		"entry_price":  execPrice.String(),
		"quantity":     qty,
		"buy_order_id": strings.TrimSpace(buyOrderID),
		"updated_at":   now,
	}
	var m storemodel.TradeRecordModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", sym, RecordArmed).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		m = storemodel.TradeRecordModel{
			Symbol:        sym,
			Status:        RecordFilled,
			EntryPrice:    execPrice.String(),
			Quantity:      qty,
			BuyOrderID:    strings.TrimSpace(buyOrderID),
			CreatedAtUnix: now,
			UpdatedAtUnix: now,
		}
		return s.db.WithContext(ctx).Create(&m).Error
	}
	return s.db.WithContext(ctx).Model(&storemodel.TradeRecordModel{}).
		Where("id = ?", m.ID).
		Updates(updates).Error
}

// RecordExit closes the most recent open FILLED row for symbol. reason is
// "TP" or "SL". When no open row exists a closed row is inserted so exits
// reconciled across restarts still leave a trace.
func (s *Store) RecordExit(ctx context.Context, symbol string, exitPrice decimal.Decimal, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	status := RecordClosedTP
	if strings.EqualFold(reason, "SL") {
		status = RecordClosedSL
	}
	now := time.Now().UnixMilli()

	var m storemodel.TradeRecordModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND status = ? AND closed_at IS NULL", sym, RecordFilled).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		m = storemodel.TradeRecordModel{
			Symbol:        sym,
			Status:        status,
			ExitPrice:     exitPrice.String(),
			ExitReason:    strings.ToUpper(reason),
			CreatedAtUnix: now,
			UpdatedAtUnix: now,
			ClosedAtUnix:  &now,
		}
		return s.db.WithContext(ctx).Create(&m).Error
	}
	return s.db.WithContext(ctx).Model(&storemodel.TradeRecordModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"status":      status,
			"exit_price":  exitPrice.String(),
			"exit_reason": strings.ToUpper(reason),
			"closed_at":   now,
			"updated_at":  now,
		}).Error
}

// ListTradeRecords returns recent lifecycle rows, newest first.
func (s *Store) ListTradeRecords(ctx context.Context, symbol string, limit int) ([]TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Model(&storemodel.TradeRecordModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	var models []storemodel.TradeRecordModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(models))
	for _, m := range models {
		out = append(out, tradeRecordModelToRecord(m))
	}
	return out, nil
}

// CountOpenRecords counts rows still in ARMED or FILLED state.
func (s *Store) CountOpenRecords(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store not initialized")
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&storemodel.TradeRecordModel{}).
		Where("status IN ?", []string{RecordArmed, RecordFilled}).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func tradeRecordModelToRecord(m storemodel.TradeRecordModel) TradeRecord {
	rec := TradeRecord{
		ID:           m.ID,
		Symbol:       m.Symbol,
		Status:       m.Status,
		TriggerPrice: m.TriggerPrice,
		StopPrice:    m.StopPrice,
		EntryPrice:   m.EntryPrice,
		ExitPrice:    m.ExitPrice,
		ExitReason:   m.ExitReason,
		Quantity:     m.Quantity,
		BuyOrderID:   m.BuyOrderID,
		CreatedAt:    time.UnixMilli(m.CreatedAtUnix),
		UpdatedAt:    time.UnixMilli(m.UpdatedAtUnix),
	}
	if m.ClosedAtUnix != nil && *m.ClosedAtUnix > 0 {
		ts := time.UnixMilli(*m.ClosedAtUnix)
		rec.ClosedAt = &ts
	}
	return rec
}
