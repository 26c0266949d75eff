// Package store is the data-access boundary for projects, issues and color
// thresholds. It is the only package that persists records.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/threshold"
	"gorm.io/gorm"
)

// ID prefixes for server-assigned identifiers.
const (
	ProjectPrefix = "prj"
	IssuePrefix   = "iss"
)

// Store is the data-access contract. Each call is atomic: it either applies
// fully and returns the canonical record, or applies nothing and returns an
// *OpError.
type Store interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, p models.Project) (*models.Project, error)
	UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	ListIssues(ctx context.Context) ([]models.Issue, error)
	ListIssuesByProject(ctx context.Context, projectID string) ([]models.Issue, error)
	CreateIssue(ctx context.Context, is models.Issue) (*models.Issue, error)
	UpdateIssue(ctx context.Context, id string, patch models.IssuePatch) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id string) error

	LoadThresholds(ctx context.Context) (threshold.Settings, error)
	SaveThresholds(ctx context.Context, s threshold.Settings) error
}

// GormStore implements Store on a GORM database.
type GormStore struct {
	db *gorm.DB
}

// New returns a Store backed by db. The schema must already be migrated.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GenerateID creates a unique ID in prefix-xxxxx format (5-char hex).
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("store: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:5], nil
}

// generateUniqueID retries GenerateID until the ID is unused in model's table.
func generateUniqueID(tx *gorm.DB, prefix string, model interface{}) (string, error) {
	for i := 0; i < 10; i++ {
		id, err := GenerateID(prefix)
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("store: could not generate unique %s ID after 10 attempts", prefix)
}
