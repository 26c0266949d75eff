package store

import (
	"context"
	"strings"

	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/threshold"
	"gorm.io/gorm"
)

const entityProject = "project"

// ListProjects returns every project ordered by creation time, newest first.
func (s *GormStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.WithContext(ctx).Order("created_at DESC, id ASC").Find(&projects).Error; err != nil {
		return nil, classify("list", entityProject, "", err)
	}
	return projects, nil
}

// CreateProject stores p under a newly generated ID. Any ID on p is ignored.
func (s *GormStore) CreateProject(ctx context.Context, p models.Project) (*models.Project, error) {
	p.ProjectName = strings.TrimSpace(p.ProjectName)
	if err := validateProject("create", "", p); err != nil {
		return nil, err
	}
	p.Issues = nil

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := generateUniqueID(tx, ProjectPrefix, &models.Project{})
		if err != nil {
			return err
		}
		p.ID = id
		return tx.Create(&p).Error
	})
	if err != nil {
		return nil, classify("create", entityProject, "", err)
	}
	return &p, nil
}

// UpdateProject applies patch to the project with the given ID.
func (s *GormStore) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	if id == "" {
		return nil, invalid("update", entityProject, "", "id is required")
	}
	var out models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.Project
		if err := tx.Where("id = ?", id).First(&cur).Error; err != nil {
			return err
		}
		next := patch.Apply(cur)
		next.ProjectName = strings.TrimSpace(next.ProjectName)
		if err := validateProject("update", id, next); err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, classify("update", entityProject, id, err)
	}
	return &out, nil
}

// DeleteProject removes a project together with all of its issues.
func (s *GormStore) DeleteProject(ctx context.Context, id string) error {
	if id == "" {
		return invalid("delete", entityProject, "", "id is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Issue{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return classify("delete", entityProject, id, err)
	}
	return nil
}

func validateProject(op, id string, p models.Project) error {
	if p.ProjectName == "" {
		return invalid(op, entityProject, id, "projectName is required")
	}
	for _, f := range threshold.Fields() {
		if v, _ := p.Metric(string(f)); v < 0 || v > 1 {
			return invalid(op, entityProject, id, "%s must be within 0-1, got %g", f, v)
		}
	}
	return nil
}
