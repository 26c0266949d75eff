package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestProject_Fields(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:32")
	assertGormTag(t, typ, "ProjectName", "not null")
	assertGormTag(t, typ, "FinalScore", "index")
	assertGormTag(t, typ, "WIPAchievementRate", "column:wip_achievement_rate")
	assertGormTag(t, typ, "Remark", "type:text")
	assertGormTag(t, typ, "Issues", "foreignKey:ProjectID")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "FinalScore", "float64")
	assertFieldType(t, typ, "Issues", "[]models.Issue")
}

func TestIssue_Fields(t *testing.T) {
	typ := reflect.TypeOf(Issue{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ProjectID", "not null")
	assertGormTag(t, typ, "ProjectID", "index")
	assertGormTag(t, typ, "Status", "default:pending")
	assertGormTag(t, typ, "Detail", "type:text")
	assertGormTag(t, typ, "Images", "serializer:json")
	assertGormTag(t, typ, "Files", "serializer:json")

	assertFieldType(t, typ, "Images", "[]string")
	assertFieldType(t, typ, "Files", "[]models.File")
}

func TestColorSetting_Fields(t *testing.T) {
	typ := reflect.TypeOf(ColorSetting{})
	assertGormTag(t, typ, "Field", "primaryKey")
	assertGormTag(t, typ, "High", "not null")
	assertGormTag(t, typ, "Low", "not null")
}

func TestProject_Metric(t *testing.T) {
	p := Project{InlinePassRate: 0.1, ElecPassRate: 0.2, IssueResponseIndex: 0.3,
		WIPAchievementRate: 0.4, DeadlineAchievementRate: 0.5, FinalScore: 0.6}
	for field, want := range p.Rates() {
		got, ok := p.Metric(field)
		if !ok || got != want {
			t.Errorf("Metric(%q) = %v, %v; want %v", field, got, ok, want)
		}
	}
	if _, ok := p.Metric("velocity"); ok {
		t.Error("Metric(velocity) should not be ok")
	}
}

func TestProjectPatch_Apply(t *testing.T) {
	name := "Renamed"
	score := 0.8
	p := ProjectPatch{ProjectName: &name, FinalScore: &score}
	if p.IsEmpty() {
		t.Fatal("patch should not be empty")
	}
	orig := Project{ID: "prj-1", ProjectName: "Old", Remark: "keep"}
	got := p.Apply(orig)
	if got.ProjectName != "Renamed" || got.FinalScore != 0.8 || got.Remark != "keep" {
		t.Errorf("Apply = %+v", got)
	}
	if orig.ProjectName != "Old" {
		t.Error("Apply mutated its input")
	}
	if !(ProjectPatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"pending", StatusPending, true},
		{"in_progress", StatusInProgress, true},
		{"in-progress", StatusInProgress, true},
		{"completed", StatusCompleted, true},
		{"blocked", StatusBlocked, true},
		{"done", "done", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeStatus(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestValidEnd(t *testing.T) {
	for _, s := range []string{"", "2025-06-05", EndUndetermined} {
		if !ValidEnd(s) {
			t.Errorf("ValidEnd(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"2025/06/05", "tomorrow", "2025-13-01"} {
		if ValidEnd(s) {
			t.Errorf("ValidEnd(%q) = true, want false", s)
		}
	}
	if ValidDate(EndUndetermined) {
		t.Error("ValidDate should reject the undetermined sentinel")
	}
}

func TestIssue_UnmarshalLegacyAliases(t *testing.T) {
	raw := `{"projectId":"prj-1","issue":"Broken fixture","img":["a.png"],
		"file":[{"url":"/files/x","name":"x.pdf","size":12,"type":"application/pdf"}],
		"status":"in-progress","start":"2025-06-01"}`
	var is Issue
	if err := json.Unmarshal([]byte(raw), &is); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if is.Title != "Broken fixture" {
		t.Errorf("Title = %q, want alias value", is.Title)
	}
	if len(is.Images) != 1 || is.Images[0] != "a.png" {
		t.Errorf("Images = %v", is.Images)
	}
	if len(is.Files) != 1 || is.Files[0].Size != 12 {
		t.Errorf("Files = %v", is.Files)
	}
	if is.ProjectID != "prj-1" || is.Start != "2025-06-01" {
		t.Errorf("plain fields lost: %+v", is)
	}
}

func TestIssue_CanonicalNamesWin(t *testing.T) {
	raw := `{"title":"canonical","issue":"alias","images":["b.png"],"img":["a.png"]}`
	var is Issue
	if err := json.Unmarshal([]byte(raw), &is); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if is.Title != "canonical" || is.Images[0] != "b.png" {
		t.Errorf("aliases overrode canonical fields: %+v", is)
	}
}

func TestIssuePatch_Apply(t *testing.T) {
	status := "in-progress"
	images := []string{"new.png"}
	p := IssuePatch{Status: &status, Images: &images}

	orig := Issue{ID: "iss-1", ProjectID: "prj-1", Start: "2025-06-01", Images: []string{"old.png"}}
	got := p.Apply(orig)

	if got.Status != StatusInProgress {
		t.Errorf("Status = %q, want normalized in_progress", got.Status)
	}
	if got.Start != "2025-06-01" || got.ProjectID != "prj-1" {
		t.Errorf("untouched fields changed: %+v", got)
	}
	images[0] = "mutated.png"
	if got.Images[0] != "new.png" {
		t.Error("Apply result aliases the patch slice")
	}
	if orig.Images[0] != "old.png" {
		t.Error("Apply mutated its input")
	}
}

func TestIssuePatch_ApplyAppends(t *testing.T) {
	orig := Issue{Images: []string{"a.png"}, Files: []File{{Name: "a.pdf"}}}
	p := IssuePatch{AddImages: []string{"b.png"}, AddFiles: []File{{Name: "b.pdf"}}}
	if p.IsEmpty() {
		t.Fatal("append-only patch reported empty")
	}
	got := p.Apply(orig)
	if len(got.Images) != 2 || got.Images[1] != "b.png" || len(got.Files) != 2 || got.Files[1].Name != "b.pdf" {
		t.Errorf("Apply = %+v", got)
	}
	if len(orig.Images) != 1 || len(orig.Files) != 1 {
		t.Error("Apply mutated its input")
	}

	replaced := IssuePatch{Images: &[]string{"x.png"}, AddImages: []string{"y.png"}}.Apply(orig)
	if len(replaced.Images) != 2 || replaced.Images[0] != "x.png" || replaced.Images[1] != "y.png" {
		t.Errorf("replace then append = %v", replaced.Images)
	}
}

func TestIssuePatch_UnmarshalAliases(t *testing.T) {
	var p IssuePatch
	if err := json.Unmarshal([]byte(`{"issue":"x","img":[]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Title == nil || *p.Title != "x" {
		t.Errorf("Title = %v", p.Title)
	}
	if p.Images == nil || len(*p.Images) != 0 {
		t.Errorf("Images = %v, want empty non-nil", p.Images)
	}
	if p.IsEmpty() {
		t.Error("patch should not be empty")
	}
}
