package store

import (
	"context"
	"strings"

	"github.com/zulandar/kpiboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entityIssue = "issue"

// ListIssues returns all issues, newest first.
func (s *GormStore) ListIssues(ctx context.Context) ([]models.Issue, error) {
	var issues []models.Issue
	if err := s.db.WithContext(ctx).Order("created_at DESC, id ASC").Find(&issues).Error; err != nil {
		return nil, classify("list", entityIssue, "", err)
	}
	return normalizeSlices(issues), nil
}

// ListIssuesByProject returns the issues of one project, newest first. An
// unknown project yields an empty list.
func (s *GormStore) ListIssuesByProject(ctx context.Context, projectID string) ([]models.Issue, error) {
	if projectID == "" {
		return nil, invalid("list", entityIssue, "", "projectId is required")
	}
	var issues []models.Issue
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("created_at DESC, id ASC").Find(&issues).Error; err != nil {
		return nil, classify("list", entityIssue, "", err)
	}
	return normalizeSlices(issues), nil
}

// CreateIssue stores is under a newly generated ID. The owning project must
// exist. An empty status defaults to pending.
func (s *GormStore) CreateIssue(ctx context.Context, is models.Issue) (*models.Issue, error) {
	is.ID = ""
	is.Title = strings.TrimSpace(is.Title)
	if is.Status == "" {
		is.Status = models.StatusPending
	}
	if err := validateIssue("create", "", &is); err != nil {
		return nil, err
	}
	if is.ProjectID == "" {
		return nil, invalid("create", entityIssue, "", "projectId is required")
	}
	is = is.Clone()
	if is.Images == nil {
		is.Images = []string{}
	}
	if is.Files == nil {
		is.Files = []models.File{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Project{}).Where("id = ?", is.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return invalid("create", entityIssue, "", "project %s does not exist", is.ProjectID)
		}
		id, err := generateUniqueID(tx, IssuePrefix, &models.Issue{})
		if err != nil {
			return err
		}
		is.ID = id
		return tx.Create(&is).Error
	})
	if err != nil {
		return nil, classify("create", entityIssue, "", err)
	}
	return &is, nil
}

// UpdateIssue applies patch to the issue with the given ID.
func (s *GormStore) UpdateIssue(ctx context.Context, id string, patch models.IssuePatch) (*models.Issue, error) {
	if id == "" {
		return nil, invalid("update", entityIssue, "", "id is required")
	}
	var out models.Issue
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.Issue
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&cur).Error; err != nil {
			return err
		}
		next := patch.Apply(cur)
		next.Title = strings.TrimSpace(next.Title)
		if err := validateIssue("update", id, &next); err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, classify("update", entityIssue, id, err)
	}
	out = normalizeSlices([]models.Issue{out})[0]
	return &out, nil
}

// DeleteIssue removes the issue with the given ID.
func (s *GormStore) DeleteIssue(ctx context.Context, id string) error {
	if id == "" {
		return invalid("delete", entityIssue, "", "id is required")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Issue{})
	if res.Error != nil {
		return classify("delete", entityIssue, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("delete", entityIssue, id)
	}
	return nil
}

// validateIssue normalizes the status in place and checks the record.
func validateIssue(op, id string, is *models.Issue) error {
	if is.Title == "" {
		return invalid(op, entityIssue, id, "title is required")
	}
	status, ok := models.NormalizeStatus(is.Status)
	if !ok {
		return invalid(op, entityIssue, id, "status %q must be one of pending, in_progress, completed, blocked", is.Status)
	}
	is.Status = status
	if !models.ValidDate(is.Start) {
		return invalid(op, entityIssue, id, "start %q must be YYYY-MM-DD", is.Start)
	}
	if !models.ValidEnd(is.End) {
		return invalid(op, entityIssue, id, "end %q must be YYYY-MM-DD or %q", is.End, models.EndUndetermined)
	}
	return nil
}

// normalizeSlices replaces nil attachment lists with empty ones so records
// read back identically to how they were written.
func normalizeSlices(issues []models.Issue) []models.Issue {
	for i := range issues {
		if issues[i].Images == nil {
			issues[i].Images = []string{}
		}
		if issues[i].Files == nil {
			issues[i].Files = []models.File{}
		}
	}
	return issues
}
