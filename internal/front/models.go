package front

import (
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/stats"
	"kyri56xcaesar/tasktracker/internal/tracker"
)

type UserVM struct {
	ID        string
	Name      string
	Email     string
	Role      models.Role
	IsAdmin   bool
	CanManage bool
}

func userVM(p models.Principal) *UserVM {
	if !p.Authenticated() {
		return nil
	}
	return &UserVM{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		IsAdmin:   p.IsAdmin(),
		CanManage: p.Role.CanManage(),
	}
}

type Flash struct {
	Kind    string
	Message string
}

// Page is embedded by every view model; layout.html reads it.
type Page struct {
	Title  string
	Active string
	User   *UserVM
	Flash  []Flash
}

type ErrorVM struct {
	Page
	Status  int
	Message string
}

type AuthVM struct {
	Page
	Email string
	Name  string
	Next  string
	Error string
}

type DashboardVM struct {
	Page
	*tracker.Dashboard
}

type ProjectsVM struct {
	Page
	Projects []models.Project
	Names    tracker.Names
	Filters  models.ProjectQuery
}

type ProjectFormVM struct {
	Page
	Managers []models.User
	People   []models.User
}

type ProjectVM struct {
	Page
	*tracker.ProjectView
	// Candidates are the users that can still be added to the team.
	Candidates []models.User
	Managers   []models.User
}

type TasksVM struct {
	Page
	Tasks    []models.Task
	Names    tracker.Names
	Projects map[string]string
	Filters  models.TaskQuery
}

type TaskFormVM struct {
	Page
	Projects  []models.Project
	ProjectID string
}

type TaskVM struct {
	Page
	*tracker.TaskView
}

type CalendarVM struct {
	Page
	Events []stats.Event
}

type ProfileVM struct {
	Page
	Profile *models.User
	Stats   *stats.Tasks
}

type AdminVM struct {
	Page
	Users []models.User
}
