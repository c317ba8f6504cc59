package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is the workflow status shared by purchases and stock documents.
type Stage string

const (
	StageDraft     Stage = "draft"
	StageChecked   Stage = "checked"
	StageApproved  Stage = "approved"
	StageCancelled Stage = "cancelled"
)

// ErrInvalidTransition is returned when a stage change is not allowed.
var ErrInvalidTransition = errors.New("stage transition not allowed")

// Stages lists every stage in workflow order.
var Stages = []Stage{StageDraft, StageChecked, StageApproved, StageCancelled}

// OpenStages are stages whose documents have not reached a terminal state.
var OpenStages = []Stage{StageDraft, StageChecked}

// ParseStage converts a string into a Stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// StageFromCode maps legacy integer stage codes (1 draft, 2 checked,
// 3 approved, 6 cancelled).
func StageFromCode(code int) (Stage, error) {
	switch code {
	case 1:
		return StageDraft, nil
	case 2:
		return StageChecked, nil
	case 3:
		return StageApproved, nil
	case 6:
		return StageCancelled, nil
	}
	return "", fmt.Errorf("unknown stage code %d", code)
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageDraft, StageChecked, StageApproved, StageCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageApproved || s == StageCancelled
}

// Editable reports whether header and lines may still change.
func (s Stage) Editable() bool {
	return s == StageDraft
}

// Committed reports whether the document affects stock or ledgers.
func (s Stage) Committed() bool {
	return s == StageApproved
}

// Check moves a draft to checked.
func (s Stage) Check() (Stage, error) {
	return s.to(StageChecked, StageDraft)
}

// Approve moves a checked document to approved. Drafts may be approved
// directly.
func (s Stage) Approve() (Stage, error) {
	return s.to(StageApproved, StageDraft, StageChecked)
}

// Cancel abandons an open document.
func (s Stage) Cancel() (Stage, error) {
	return s.to(StageCancelled, StageDraft, StageChecked)
}

// Reopen returns a checked document to draft.
func (s Stage) Reopen() (Stage, error) {
	return s.to(StageDraft, StageChecked)
}

func (s Stage) to(next Stage, from ...Stage) (Stage, error) {
	for _, f := range from {
		if s == f {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

func (s Stage) String() string {
	return string(s)
}
