package store

import (
	"context"

	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/threshold"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entityThresholds = "thresholds"

// LoadThresholds returns the persisted color thresholds. Fields with no row
// are simply absent from the result.
func (s *GormStore) LoadThresholds(ctx context.Context) (threshold.Settings, error) {
	var rows []models.ColorSetting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, classify("list", entityThresholds, "", err)
	}
	out := make(threshold.Settings, len(rows))
	for _, r := range rows {
		out[threshold.Field(r.Field)] = threshold.Range{High: r.High, Low: r.Low}
	}
	return out, nil
}

// SaveThresholds replaces every persisted threshold with settings. The
// replacement must be complete.
func (s *GormStore) SaveThresholds(ctx context.Context, settings threshold.Settings) error {
	if err := threshold.Validate(settings); err != nil {
		return invalid("update", entityThresholds, "", "%v", err)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range threshold.Fields() {
			r := settings[f]
			row := models.ColorSetting{Field: string(f), High: r.High, Low: r.Low}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "field"}},
				DoUpdates: clause.AssignmentColumns([]string{"high", "low"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify("update", entityThresholds, "", err)
	}
	return nil
}
