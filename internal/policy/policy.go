// Package policy decides who may do what to which project, task or user, and
// checks the cross-entity invariants that must hold before a write.
//
// Every function is pure: callers load the resources, ask policy, and only
// mutate the store when the answer is nil. Denials are errs.KindForbidden,
// invariant violations errs.KindInvalid.
package policy

import (
	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/models"
)

const denied = "Not authorized to perform this action"

func deny(msg string) error {
	if msg == "" {
		msg = denied
	}
	return errs.Forbidden(msg)
}

// CanViewProject allows admins, the manager and team members.
func CanViewProject(p models.Principal, proj *models.Project) error {
	if p.IsAdmin() || proj.IsParticipant(p.ID) {
		return nil
	}
	return deny("Not authorized to access this project")
}

func CanCreateProject(p models.Principal) error {
	if p.Role.CanManage() {
		return nil
	}
	return deny("Only admins and project managers can create projects")
}

func CanUpdateProject(p models.Principal, proj *models.Project) error {
	if p.IsAdmin() || proj.IsManager(p.ID) {
		return nil
	}
	return deny("Not authorized to update this project")
}

// CanReassignManager guards any change of a project's manager.
func CanReassignManager(p models.Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return deny("Only admins can change the project manager")
}

func CanDeleteProject(p models.Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return deny("Only admins can delete projects")
}

func CanManageTeam(p models.Principal, proj *models.Project) error {
	if p.IsAdmin() || proj.IsManager(p.ID) {
		return nil
	}
	return deny("Not authorized to manage this project's team")
}

func CanCreateTask(p models.Principal, proj *models.Project) error {
	if p.IsAdmin() || proj.IsParticipant(p.ID) {
		return nil
	}
	return deny("Not authorized to create tasks in this project")
}

func CanViewTask(p models.Principal, proj *models.Project, t *models.Task) error {
	if p.IsAdmin() || proj.IsParticipant(p.ID) || isAssignee(p, t) {
		return nil
	}
	return deny("Not authorized to access this task")
}

// CanUpdateTask covers both the general update and the status endpoint.
func CanUpdateTask(p models.Principal, proj *models.Project, t *models.Task) error {
	if p.IsAdmin() || proj.IsManager(p.ID) || isAssignee(p, t) {
		return nil
	}
	return deny("Not authorized to update this task")
}

func CanDeleteTask(p models.Principal, proj *models.Project) error {
	if p.IsAdmin() || proj.IsManager(p.ID) {
		return nil
	}
	return deny("Not authorized to delete this task")
}

func CanComment(p models.Principal, proj *models.Project, t *models.Task) error {
	if p.IsAdmin() || proj.IsParticipant(p.ID) || isAssignee(p, t) {
		return nil
	}
	return deny("Not authorized to comment on this task")
}

func CanManageUsers(p models.Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return deny("Only admins can manage users")
}

// CanAssignRole is the single role-escalation check. Every path that sets a
// role (registration, admin create, admin update) goes through it. The
// caller may be the zero Principal for public registration.
func CanAssignRole(p models.Principal, role models.Role) error {
	if !role.Valid() {
		return errs.Invalidf("Invalid role %q", role)
	}
	if role == models.RoleAdmin && !p.IsAdmin() {
		return deny("Not authorized to assign the admin role")
	}
	return nil
}

// CanDeleteUser requires an admin and refuses self deletion.
func CanDeleteUser(p models.Principal, targetID string) error {
	if err := CanManageUsers(p); err != nil {
		return err
	}
	if p.ID == targetID {
		return errs.Invalid("You cannot delete your own account")
	}
	return nil
}

// CanEditSelf limits self-service operations to the caller's own record.
func CanEditSelf(p models.Principal, targetID string) error {
	if p.Authenticated() && p.ID == targetID {
		return nil
	}
	return deny("Not authorized to modify another user's profile")
}

func isAssignee(p models.Principal, t *models.Task) bool {
	return t.AssignedTo != "" && t.AssignedTo == p.ID
}
