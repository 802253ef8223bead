package models

import "fmt"

// Role is the access level of a user account.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleTeamMember     Role = "team_member"
)

func Roles() []Role {
	return []Role{RoleAdmin, RoleProjectManager, RoleTeamMember}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleTeamMember:
		return true
	}
	return false
}

// CanManage reports whether the role may own (manage) a project.
func (r Role) CanManage() bool {
	switch r {
	case RoleAdmin, RoleProjectManager:
		return true
	case RoleTeamMember:
		return false
	}
	return false
}

func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleProjectManager:
		return "Project Manager"
	case RoleTeamMember:
		return "Team Member"
	}
	return string(r)
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

func ProjectStatuses() []ProjectStatus {
	return []ProjectStatus{ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled}
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

func (s ProjectStatus) Label() string {
	switch s {
	case ProjectPlanning:
		return "Planning"
	case ProjectActive:
		return "Active"
	case ProjectOnHold:
		return "On Hold"
	case ProjectCompleted:
		return "Completed"
	case ProjectCancelled:
		return "Cancelled"
	}
	return string(s)
}

func ParseProjectStatus(s string) (ProjectStatus, error) {
	ps := ProjectStatus(s)
	if !ps.Valid() {
		return "", fmt.Errorf("unknown project status %q", s)
	}
	return ps, nil
}

type TaskStatus string

const (
	TaskToDo       TaskStatus = "to_do"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

func TaskStatuses() []TaskStatus {
	return []TaskStatus{TaskToDo, TaskInProgress, TaskReview, TaskCompleted}
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskToDo, TaskInProgress, TaskReview, TaskCompleted:
		return true
	}
	return false
}

func (s TaskStatus) Label() string {
	switch s {
	case TaskToDo:
		return "To Do"
	case TaskInProgress:
		return "In Progress"
	case TaskReview:
		return "Review"
	case TaskCompleted:
		return "Completed"
	}
	return string(s)
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	ts := TaskStatus(s)
	if !ts.Valid() {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return ts, nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	}
	return string(p)
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}
