package policy

import "kyri56xcaesar/tasktracker/internal/models"

// ProjectScope restricts a project query. The zero value matches nothing;
// All matches everything.
type ProjectScope struct {
	All           bool
	ManagedBy     string
	ParticipantOf string
}

// TaskScope restricts a task query: a task matches when it is in a project
// selected by Projects, or when it is assigned to AssignedTo.
type TaskScope struct {
	All        bool
	Projects   ProjectScope
	AssignedTo string
}

func ProjectsVisibleTo(p models.Principal) ProjectScope {
	switch p.Role {
	case models.RoleAdmin:
		return ProjectScope{All: true}
	case models.RoleProjectManager:
		return ProjectScope{ManagedBy: p.ID}
	case models.RoleTeamMember:
		return ProjectScope{ParticipantOf: p.ID}
	}
	return ProjectScope{}
}

func TasksVisibleTo(p models.Principal) TaskScope {
	switch p.Role {
	case models.RoleAdmin:
		return TaskScope{All: true}
	case models.RoleProjectManager:
		return TaskScope{Projects: ProjectScope{ManagedBy: p.ID}}
	case models.RoleTeamMember:
		return TaskScope{Projects: ProjectScope{ParticipantOf: p.ID}, AssignedTo: p.ID}
	}
	return TaskScope{}
}

// StatsVisibleTo is the task universe for dashboard statistics: every task
// for admins, otherwise the tasks of projects the caller manages or belongs to.
func StatsVisibleTo(p models.Principal) TaskScope {
	if p.IsAdmin() {
		return TaskScope{All: true}
	}
	return TaskScope{Projects: ProjectScope{ParticipantOf: p.ID}}
}

func (s ProjectScope) Matches(proj *models.Project) bool {
	switch {
	case s.All:
		return true
	case s.ManagedBy != "":
		return proj.IsManager(s.ManagedBy)
	case s.ParticipantOf != "":
		return proj.IsParticipant(s.ParticipantOf)
	}
	return false
}

// Matches needs the task's project to evaluate project based scopes.
func (s TaskScope) Matches(proj *models.Project, t *models.Task) bool {
	if s.All {
		return true
	}
	if s.AssignedTo != "" && t.AssignedTo == s.AssignedTo {
		return true
	}
	return proj != nil && s.Projects.Matches(proj)
}
