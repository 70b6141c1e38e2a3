package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	storemodel "github.com/iMOD07/AlpacaTradingBot/internal/store/model"
)

// TradeEvent is one audit fact as read back from the store.
type TradeEvent struct {
	ID        int64
	Symbol    string
	EventType string
	Message   string
	OrderID   string
	Payload   []byte
	CreatedAt time.Time
}

// AppendTradeEvent writes one audit row. payload may be nil.
func (s *Store) AppendTradeEvent(ctx context.Context, symbol, eventType, message, orderID string, payload []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	m := storemodel.TradeEventModel{
		Symbol:        strings.ToUpper(strings.TrimSpace(symbol)),
		EventType:     strings.TrimSpace(eventType),
		Message:       message,
		OrderID:       strings.TrimSpace(orderID),
		CreatedAtUnix: time.Now().UnixMilli(),
	}
	if len(payload) > 0 {
		m.Payload = datatypes.JSON(payload)
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListTradeEvents returns the most recent audit rows, newest first,
// optionally filtered by symbol.
func (s *Store) ListTradeEvents(ctx context.Context, symbol string, limit int) ([]TradeEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Model(&storemodel.TradeEventModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	var models []storemodel.TradeEventModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]TradeEvent, 0, len(models))
	for _, m := range models {
		out = append(out, TradeEvent{
			ID:        m.ID,
			Symbol:    m.Symbol,
			EventType: m.EventType,
			Message:   m.Message,
			OrderID:   m.OrderID,
			Payload:   []byte(m.Payload),
			CreatedAt: time.UnixMilli(m.CreatedAtUnix),
		})
	}
	return out, nil
}
