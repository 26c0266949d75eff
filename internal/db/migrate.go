package db

import (
	"fmt"
	"math/rand"

	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/store"
	"github.com/zulandar/kpiboard/internal/threshold"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Issue{},
		&models.ColorSetting{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedThresholds upserts one ColorSetting row per configured field.
func SeedThresholds(db *gorm.DB, settings threshold.Settings) error {
	for _, f := range threshold.Fields() {
		r, ok := settings[f]
		if !ok {
			continue
		}
		row := models.ColorSetting{Field: string(f), High: r.High, Low: r.Low}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "field"}},
			DoUpdates: clause.AssignmentColumns([]string{"high", "low"}),
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed threshold %q: %w", f, result.Error)
		}
	}
	return nil
}

var projectNames = []string{
	"Atlas", "Borealis", "Cobalt", "Delta", "Ember", "Falcon", "Granite", "Helix",
	"Ion", "Juniper", "Krypton", "Lumen", "Meridian", "Nimbus", "Onyx", "Pulsar",
}

// RandomProjects fabricates n projects with random metrics, mimicking the
// demo data of the mock backend. Scores are the product of the five rates.
func RandomProjects(n int, rng *rand.Rand) ([]models.Project, error) {
	out := make([]models.Project, 0, n)
	for i := 0; i < n; i++ {
		id, err := store.GenerateID(store.ProjectPrefix)
		if err != nil {
			return nil, err
		}
		p := models.Project{
			ID:                      id,
			ProjectName:             fmt.Sprintf("%s-%02d", projectNames[i%len(projectNames)], i+1),
			InlinePassRate:          0.6 + rng.Float64()*0.4,
			ElecPassRate:            0.6 + rng.Float64()*0.4,
			IssueResponseIndex:      0.5 + rng.Float64()*0.5,
			WIPAchievementRate:      0.5 + rng.Float64()*0.5,
			DeadlineAchievementRate: 0.5 + rng.Float64()*0.5,
		}
		p.FinalScore = p.InlinePassRate * p.ElecPassRate * p.IssueResponseIndex *
			p.WIPAchievementRate * p.DeadlineAchievementRate
		out = append(out, p)
	}
	return out, nil
}

// SeedProjects inserts n random projects in one transaction.
func SeedProjects(db *gorm.DB, n int, rng *rand.Rand) ([]models.Project, error) {
	projects, err := RandomProjects(n, rng)
	if err != nil {
		return nil, fmt.Errorf("db: seed projects: %w", err)
	}
	if len(projects) == 0 {
		return projects, nil
	}
	if err := db.Create(&projects).Error; err != nil {
		return nil, fmt.Errorf("db: seed projects: %w", err)
	}
	return projects, nil
}
