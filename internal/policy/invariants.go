package policy

import (
	"strings"
	"time"

	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/models"
)

// ValidateManager checks that a user may hold a project's manager seat.
func ValidateManager(candidate *models.User) error {
	if candidate.Role.CanManage() {
		return nil
	}
	return errs.Invalid("Project manager must have the admin or project_manager role")
}

// ValidateAssignee checks that an assignee is the manager or on the team.
// An empty id means unassigned and always passes.
func ValidateAssignee(proj *models.Project, userID string) error {
	if userID == "" || proj.IsParticipant(userID) {
		return nil
	}
	return errs.Invalid("Assigned user must be the project manager or a team member")
}

func ValidateTeamAdd(proj *models.Project, userID string) error {
	if proj.IsMember(userID) {
		return errs.Invalid("User is already a member of this project")
	}
	return nil
}

func ValidateTeamRemove(proj *models.Project, userID string) error {
	if !proj.IsMember(userID) {
		return errs.Invalid("User is not a member of this project")
	}
	return nil
}

func ValidateDates(start time.Time, end *time.Time) error {
	if end != nil && !start.IsZero() && end.Before(start) {
		return errs.Invalid("End date cannot be before the start date")
	}
	return nil
}

// ValidateComment returns the trimmed comment text.
func ValidateComment(text string) (string, error) {
	return RequireText("Comment text", text)
}

// RequireText trims v and rejects it when nothing is left.
func RequireText(field, v string) (string, error) {
	t := strings.TrimSpace(v)
	if t == "" {
		return "", errs.Invalidf("%s is required", field)
	}
	return t, nil
}

// ApplyStatus moves a task to status s. Entering completed stamps
// CompletedAt, leaving it clears CompletedAt, and re-setting the current
// status changes nothing. It reports whether the status changed.
func ApplyStatus(t *models.Task, s models.TaskStatus, now time.Time) (bool, error) {
	if !s.Valid() {
		return false, errs.Invalidf("Invalid task status %q", s)
	}
	if t.Status == s {
		return false, nil
	}

	switch s {
	case models.TaskCompleted:
		at := now
		t.CompletedAt = &at
	case models.TaskToDo, models.TaskInProgress, models.TaskReview:
		t.CompletedAt = nil
	}
	t.Status = s

	return true, nil
}
