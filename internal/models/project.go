package models

import "time"

// Project is a row of the KPI grid. Rate metrics are fractions in [0,1].
type Project struct {
	ID                      string    `gorm:"primaryKey;size:32" json:"id"`
	ProjectName             string    `gorm:"size:128;not null" json:"projectName"`
	InlinePassRate          float64   `gorm:"default:0" json:"inlinePassRate"`
	ElecPassRate            float64   `gorm:"default:0" json:"elecPassRate"`
	IssueResponseIndex      float64   `gorm:"default:0" json:"issueResponseIndex"`
	WIPAchievementRate      float64   `gorm:"column:wip_achievement_rate;default:0" json:"wipAchievementRate"`
	DeadlineAchievementRate float64   `gorm:"default:0" json:"deadlineAchievementRate"`
	FinalScore              float64   `gorm:"default:0;index" json:"finalScore"`
	Remark                  string    `gorm:"type:text" json:"remark"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`

	Issues []Issue `gorm:"foreignKey:ProjectID" json:"-"`
}

// Metric returns the value of a metric by its JSON field name. Unknown names
// report ok=false.
func (p Project) Metric(field string) (value float64, ok bool) {
	switch field {
	case "inlinePassRate":
		return p.InlinePassRate, true
	case "elecPassRate":
		return p.ElecPassRate, true
	case "issueResponseIndex":
		return p.IssueResponseIndex, true
	case "wipAchievementRate":
		return p.WIPAchievementRate, true
	case "deadlineAchievementRate":
		return p.DeadlineAchievementRate, true
	case "finalScore":
		return p.FinalScore, true
	}
	return 0, false
}

// ProjectPatch is a partial update. Nil fields are left unchanged.
type ProjectPatch struct {
	ProjectName             *string  `json:"projectName,omitempty"`
	InlinePassRate          *float64 `json:"inlinePassRate,omitempty"`
	ElecPassRate            *float64 `json:"elecPassRate,omitempty"`
	IssueResponseIndex      *float64 `json:"issueResponseIndex,omitempty"`
	WIPAchievementRate      *float64 `json:"wipAchievementRate,omitempty"`
	DeadlineAchievementRate *float64 `json:"deadlineAchievementRate,omitempty"`
	FinalScore              *float64 `json:"finalScore,omitempty"`
	Remark                  *string  `json:"remark,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProjectPatch) IsEmpty() bool {
	return p.ProjectName == nil && p.InlinePassRate == nil && p.ElecPassRate == nil &&
		p.IssueResponseIndex == nil && p.WIPAchievementRate == nil &&
		p.DeadlineAchievementRate == nil && p.FinalScore == nil && p.Remark == nil
}

// Apply returns a copy of proj with the patch applied.
func (p ProjectPatch) Apply(proj Project) Project {
	if p.ProjectName != nil {
		proj.ProjectName = *p.ProjectName
	}
	if p.InlinePassRate != nil {
		proj.InlinePassRate = *p.InlinePassRate
	}
	if p.ElecPassRate != nil {
		proj.ElecPassRate = *p.ElecPassRate
	}
	if p.IssueResponseIndex != nil {
		proj.IssueResponseIndex = *p.IssueResponseIndex
	}
	if p.WIPAchievementRate != nil {
		proj.WIPAchievementRate = *p.WIPAchievementRate
	}
	if p.DeadlineAchievementRate != nil {
		proj.DeadlineAchievementRate = *p.DeadlineAchievementRate
	}
	if p.FinalScore != nil {
		proj.FinalScore = *p.FinalScore
	}
	if p.Remark != nil {
		proj.Remark = *p.Remark
	}
	proj.Issues = nil
	return proj
}

// Rates returns the metric values of p that must lie in [0,1], keyed by
// JSON field name.
func (p Project) Rates() map[string]float64 {
	return map[string]float64{
		"inlinePassRate":          p.InlinePassRate,
		"elecPassRate":            p.ElecPassRate,
		"issueResponseIndex":      p.IssueResponseIndex,
		"wipAchievementRate":      p.WIPAchievementRate,
		"deadlineAchievementRate": p.DeadlineAchievementRate,
		"finalScore":              p.FinalScore,
	}
}
