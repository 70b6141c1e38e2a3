package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	storemodel "github.com/iMOD07/AlpacaTradingBot/internal/store/model"
)

const settingsRowID = 1

// SettingsRecord is the persisted runtime settings row. Money and percent
// fields stay as decimal text; parsing happens at the service layer.
type SettingsRecord struct {
	FixedBudgetUSD    string
	TakeProfitPercent string
	RegexEnabled      bool
	AIEnabled         bool
	ExtendedHours     bool
	MaxSpreadBps      int
	UpdatedAt         time.Time
}

// GetSettings reads the singleton settings row. ok is false when the row
// has never been written.
func (s *Store) GetSettings(ctx context.Context) (SettingsRecord, bool, error) {
	if s == nil || s.db == nil {
		return SettingsRecord{}, false, fmt.Errorf("store not initialized")
	}
	var m storemodel.AppSettingsModel
	if err := s.db.WithContext(ctx).Where("id = ?", settingsRowID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SettingsRecord{}, false, nil
		}
		return SettingsRecord{}, false, err
	}
	return SettingsRecord{
		FixedBudgetUSD:    m.FixedBudgetUSD,
		TakeProfitPercent: m.TakeProfitPercent,
		RegexEnabled:      m.RegexEnabled != 0,
		AIEnabled:         m.AIEnabled != 0,
		ExtendedHours:     m.ExtendedHours != 0,
		MaxSpreadBps:      m.MaxSpreadBps,
		UpdatedAt:         time.UnixMilli(m.UpdatedAtUnix),
	}, true, nil
}

// SaveSettings upserts the singleton settings row.
func (s *Store) SaveSettings(ctx context.Context, rec SettingsRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	m := storemodel.AppSettingsModel{
		ID:                settingsRowID,
		FixedBudgetUSD:    rec.FixedBudgetUSD,
		TakeProfitPercent: rec.TakeProfitPercent,
		RegexEnabled:      boolToInt(rec.RegexEnabled),
		AIEnabled:         boolToInt(rec.AIEnabled),
		ExtendedHours:     boolToInt(rec.ExtendedHours),
		MaxSpreadBps:      rec.MaxSpreadBps,
		UpdatedAtUnix:     time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"fixed_budget_usd", "take_profit_percent", "regex_enabled",
				"ai_enabled", "extended_hours", "max_spread_bps", "updated_at",
			}),
		}).
		Create(&m).Error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
