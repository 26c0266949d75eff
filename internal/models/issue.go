package models

import (
	"encoding/json"
	"time"
)

// Issue statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
)

// DateLayout is the wire format of Issue.Start and Issue.End.
const DateLayout = "2006-01-02"

// EndUndetermined marks an open-ended issue whose end date is not yet known.
const EndUndetermined = "undetermined"

// Issue is a tracked work item belonging to exactly one project.
type Issue struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	ProjectID string    `gorm:"size:32;not null;index" json:"projectId"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	Summary   string    `gorm:"type:text" json:"summary"`
	Status    string    `gorm:"size:16;default:pending;index" json:"status"`
	Detail    string    `gorm:"type:text" json:"detail"`
	Start     string    `gorm:"size:16" json:"start,omitempty"`
	End       string    `gorm:"size:16" json:"end,omitempty"`
	Images    []string  `gorm:"serializer:json;type:text" json:"images"`
	Files     []File    `gorm:"serializer:json;type:text" json:"files"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// File is an attachment reference on an issue.
type File struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// UnmarshalJSON accepts the legacy field names "issue", "img" and "file"
// alongside title, images and files.
func (i *Issue) UnmarshalJSON(data []byte) error {
	type plain Issue
	aux := struct {
		*plain
		Issue *string  `json:"issue"`
		Img   []string `json:"img"`
		File  []File   `json:"file"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Issue != nil && i.Title == "" {
		i.Title = *aux.Issue
	}
	if aux.Img != nil && i.Images == nil {
		i.Images = aux.Img
	}
	if aux.File != nil && i.Files == nil {
		i.Files = aux.File
	}
	return nil
}

// Clone returns a deep copy of i.
func (i Issue) Clone() Issue {
	if i.Images != nil {
		i.Images = append([]string(nil), i.Images...)
	}
	if i.Files != nil {
		i.Files = append([]File(nil), i.Files...)
	}
	return i
}

// NormalizeStatus maps accepted spellings onto the canonical status values.
// The second result is false for anything outside the four statuses.
func NormalizeStatus(s string) (string, bool) {
	switch s {
	case StatusPending, StatusCompleted, StatusBlocked, StatusInProgress:
		return s, true
	case "in-progress":
		return StatusInProgress, true
	}
	return s, false
}

// ValidDate reports whether s is empty or a YYYY-MM-DD date.
func ValidDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidEnd reports whether s is an acceptable end date: empty, the
// undetermined sentinel, or a YYYY-MM-DD date.
func ValidEnd(s string) bool {
	return s == EndUndetermined || ValidDate(s)
}

// IssuePatch is a partial update. Nil fields are left unchanged; the owning
// project cannot be changed.
type IssuePatch struct {
	Title   *string   `json:"title,omitempty"`
	Summary *string   `json:"summary,omitempty"`
	Status  *string   `json:"status,omitempty"`
	Detail  *string   `json:"detail,omitempty"`
	Start   *string   `json:"start,omitempty"`
	End     *string   `json:"end,omitempty"`
	Images  *[]string `json:"images,omitempty"`
	Files   *[]File   `json:"files,omitempty"`

	// AddImages and AddFiles are appended to the record's lists after any
	// replacement above, against whatever the record holds when applied.
	AddImages []string `json:"addImages,omitempty"`
	AddFiles  []File   `json:"addFiles,omitempty"`
}

// UnmarshalJSON accepts the same legacy aliases as Issue.
func (p *IssuePatch) UnmarshalJSON(data []byte) error {
	type plain IssuePatch
	aux := struct {
		*plain
		Issue *string   `json:"issue"`
		Img   *[]string `json:"img"`
		File  *[]File   `json:"file"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Issue != nil && p.Title == nil {
		p.Title = aux.Issue
	}
	if aux.Img != nil && p.Images == nil {
		p.Images = aux.Img
	}
	if aux.File != nil && p.Files == nil {
		p.Files = aux.File
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p IssuePatch) IsEmpty() bool {
	return p.Title == nil && p.Summary == nil && p.Status == nil && p.Detail == nil &&
		p.Start == nil && p.End == nil && p.Images == nil && p.Files == nil &&
		len(p.AddImages) == 0 && len(p.AddFiles) == 0
}

// Apply returns a copy of issue with the patch applied. Slices are copied so
// the result never aliases the patch or the input.
func (p IssuePatch) Apply(issue Issue) Issue {
	issue = issue.Clone()
	if p.Title != nil {
		issue.Title = *p.Title
	}
	if p.Summary != nil {
		issue.Summary = *p.Summary
	}
	if p.Status != nil {
		if s, ok := NormalizeStatus(*p.Status); ok {
			issue.Status = s
		} else {
			issue.Status = *p.Status
		}
	}
	if p.Detail != nil {
		issue.Detail = *p.Detail
	}
	if p.Start != nil {
		issue.Start = *p.Start
	}
	if p.End != nil {
		issue.End = *p.End
	}
	if p.Images != nil {
		issue.Images = append([]string{}, (*p.Images)...)
	}
	if p.Files != nil {
		issue.Files = append([]File{}, (*p.Files)...)
	}
	if len(p.AddImages) > 0 {
		issue.Images = append(append([]string{}, issue.Images...), p.AddImages...)
	}
	if len(p.AddFiles) > 0 {
		issue.Files = append(append([]File{}, issue.Files...), p.AddFiles...)
	}
	return issue
}
