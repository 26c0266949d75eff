// Package uistate holds per-session view state: the open modal, the
// selected record and an editor draft, alongside a mirror of the shared
// color thresholds.
//
// A Store is an explicit container handed to whoever needs it. There is no
// package-level state; each session, and each test, gets its own Store.
package uistate

import (
	"fmt"
	"sync"

	"github.com/zulandar/kpiboard/internal/threshold"
)

// Modals.
const (
	ModalNone          = ""
	ModalProjectCreate = "project-create"
	ModalProjectEdit   = "project-edit"
	ModalIssueCreate   = "issue-create"
	ModalIssueDetail   = "issue-detail"
	ModalIssueEdit     = "issue-edit"
	ModalColorSettings = "color-settings"
)

// Selection kinds.
const (
	KindProject = "project"
	KindIssue   = "issue"
)

// ValidModal reports whether m names a known modal.
func ValidModal(m string) bool {
	switch m {
	case ModalProjectCreate, ModalProjectEdit, ModalIssueCreate, ModalIssueDetail,
		ModalIssueEdit, ModalColorSettings:
		return true
	}
	return false
}

// Selection identifies the record a modal operates on.
type Selection struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	ProjectID string `json:"projectId,omitempty"`
}

// State is a snapshot of one session's UI state.
type State struct {
	ActiveModal string             `json:"activeModal"`
	Selected    *Selection         `json:"selected,omitempty"`
	Thresholds  threshold.Settings `json:"thresholds"`
	Draft       string             `json:"draft,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s.Selected != nil {
		sel := *s.Selected
		s.Selected = &sel
	}
	s.Thresholds = s.Thresholds.Clone()
	return s
}

// Store guards a State. Every change goes through one of its actions.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns a Store holding a copy of initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.Clone()}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// OpenModal opens modal with sel as its payload. Opening a modal replaces
// any previous selection and discards the draft.
func (s *Store) OpenModal(modal string, sel *Selection) error {
	if !ValidModal(modal) {
		return fmt.Errorf("uistate: unknown modal %q", modal)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ActiveModal = modal
	s.state.Selected = cloneSelection(sel)
	s.state.Draft = ""
	return nil
}

// CloseModal closes the active modal and clears the selection and draft so
// a later open never shows a stale record.
func (s *Store) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ActiveModal = ModalNone
	s.state.Selected = nil
	s.state.Draft = ""
}

// Select replaces the selected record without changing the modal.
func (s *Store) Select(sel *Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Selected = cloneSelection(sel)
}

// SetDraft stores the editor buffer of the open modal.
func (s *Store) SetDraft(draft string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Draft = draft
}

// ReplaceThresholds swaps in a complete new set of thresholds. Partial
// settings are rejected; there is no merge.
func (s *Store) ReplaceThresholds(t threshold.Settings) error {
	if err := threshold.Validate(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Thresholds = t.Clone()
	return nil
}

// RecordDeleted drops the selection, and closes the modal, when it points
// at the deleted record or at an issue of a deleted project.
func (s *Store) RecordDeleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.state.Selected
	if sel == nil || (sel.ID != id && sel.ProjectID != id) {
		return
	}
	s.state.ActiveModal = ModalNone
	s.state.Selected = nil
	s.state.Draft = ""
}

func cloneSelection(sel *Selection) *Selection {
	if sel == nil {
		return nil
	}
	c := *sel
	return &c
}
